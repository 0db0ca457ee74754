package main

import (
	"encoding/json"
	"errors"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type ShowOptions struct {
	*RootOptions
	TransactionId int
}

type containerView struct {
	models.Container
	ApprovedIncidentEffect decimal.Decimal `json:"approved_incident_effect"`
}

type transactionView struct {
	Reconciliation *workflow.Reconciliation `json:"reconciliation"`
	Containers     []containerView          `json:"containers"`
	Incidents      []models.Incident        `json:"incidents"`
}

func NewShowTransactionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show-transaction",
		Short: "Print a transaction's reconciliation, containers and incidents as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.TransactionId <= 0 {
				return errors.New("--transaction-id is required")
			}
			db, err := connectDatabase()
			if err != nil {
				return err
			}
			ctx := operatorContext(cmd.Context(), opts.RootOptions)

			reconciliation, err := workflow.NewCashCenter(db, config.GetLogger()).Reconcile(ctx, opts.TransactionId)
			if err != nil {
				return err
			}
			containers, err := models.ListContainers(ctx, db, opts.TransactionId)
			if err != nil {
				return err
			}
			view := transactionView{
				Reconciliation: reconciliation,
				Containers:     make([]containerView, 0, len(containers)),
			}
			for _, c := range containers {
				effect, err := models.SumApprovedEffectByContainer(ctx, db, c.ID)
				if err != nil {
					return err
				}
				view.Containers = append(view.Containers, containerView{Container: c, ApprovedIncidentEffect: effect})
			}
			view.Incidents, err = models.ListIncidents(ctx, db, models.IncidentFilter{CashTransactionId: &opts.TransactionId})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	cmd.Flags().IntVar(&opts.TransactionId, "transaction-id", 0, "transaction to show")
	return cmd
}
