package main

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"github.com/spf13/cobra"
)

type RequeueOptions struct {
	*RootOptions
	ReferenceType string
	ReferenceId   int
}

func NewRequeueOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RequeueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "requeue-outbox",
		Short: "Reset DEAD and FAILED outbox events to PENDING",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connectDatabase()
			if err != nil {
				return err
			}
			ctx := operatorContext(cmd.Context(), opts.RootOptions)
			n, err := models.RequeueOutboxEvents(ctx, db, opts.ReferenceType, opts.ReferenceId)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d event(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ReferenceType, "reference-type", "", "CashTransaction, ServiceOrder or Incident (default: all)")
	cmd.Flags().IntVar(&opts.ReferenceId, "reference-id", 0, "requeue events of one reference only")
	return cmd
}
