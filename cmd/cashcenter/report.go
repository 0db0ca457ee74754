package main

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/models/reports"
	"bitbucket.org/mmdatafocus/cashcenter_backend/workflow"
	"github.com/spf13/cobra"
)

type ReportOptions struct {
	*RootOptions
	From     string
	To       string
	Workflow string
	Out      string
}

func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconciliation-report",
		Short: "Export declared vs counted values per transaction to Excel",
		Long: `Export one row per cash transaction created in [from, to] with declared,
counted and difference values, the effect of approved incidents and the
tolerance verdict.

Examples:
  cashcenter reconciliation-report --from 2026-01-01 --to 2026-01-31 --out jan.xlsx
  cashcenter reconciliation-report --from 2026-01-01 --to 2026-01-31 --workflow Provision --out - > jan.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day, inclusive (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&opts.Workflow, "workflow", "", "Collection or Provision (default: both)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "output .xlsx path, - for stdout (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runReport(cmd *cobra.Command, opts *ReportOptions) error {
	from, err := time.Parse("2006-01-02", opts.From)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := time.Parse("2006-01-02", opts.To)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}
	if to.Before(from) {
		return errors.New("--to must not be before --from")
	}
	toExclusive := to.AddDate(0, 0, 1)

	filter := reports.ReconciliationFilter{
		FromDate:        &from,
		ToDate:          &toExclusive,
		WithinTolerance: workflow.NewZeroTolerancePolicy().IsWithinTolerance,
	}
	if opts.BranchId > 0 {
		filter.BranchId = &opts.BranchId
	}
	if opts.Workflow != "" {
		kind, err := models.ParseWorkflowKind(opts.Workflow)
		if err != nil {
			return err
		}
		filter.Workflow = &kind
	}

	db, err := connectDatabase()
	if err != nil {
		return err
	}
	ctx := operatorContext(cmd.Context(), opts.RootOptions)
	rows, err := reports.BuildReconciliationRows(ctx, db, filter)
	if err != nil {
		return err
	}

	if opts.Out == "-" {
		return reports.WriteReconciliationExcelTo(rows, cmd.OutOrStdout())
	}
	if err := reports.WriteReconciliationExcel(rows, opts.Out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d row(s) to %s\n", len(rows), opts.Out)
	return nil
}
