package main

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the cash-center tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := connectDatabase(); err != nil {
				return err
			}
			if err := models.MigrateTable(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}
