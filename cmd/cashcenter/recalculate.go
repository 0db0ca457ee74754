package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/workflow"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type RecalculateOptions struct {
	*RootOptions
	TransactionId   int
	All             bool
	ContinueOnError bool
}

func NewRecalculateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecalculateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recalculate-totals",
		Short: "Recompute counted totals from containers and value details",
		Long: `Recompute TotalCountedValue, ValueDifference and container counts of
cash transactions from their stored containers and value details.

Examples:
  cashcenter recalculate-totals --transaction-id 42
  cashcenter recalculate-totals --all --branch-id 3 --continue-on-error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecalculate(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.TransactionId, "transaction-id", 0, "recalculate one transaction")
	cmd.Flags().BoolVar(&opts.All, "all", false, "recalculate every transaction (of --branch-id, if given)")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "skip failing transactions and continue")
	return cmd
}

func runRecalculate(cmd *cobra.Command, opts *RecalculateOptions) error {
	if (opts.TransactionId > 0) == opts.All {
		return errors.New("exactly one of --transaction-id or --all is required")
	}
	db, err := connectDatabase()
	if err != nil {
		return err
	}
	logger := config.GetLogger()
	ctx := operatorContext(cmd.Context(), opts.RootOptions)
	if os.Getenv("REDIS_ADDRESS") != "" {
		redisCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		config.ConnectRedisWithRetry(redisCtx)
		cancel()
	}
	service := workflow.NewCashCenter(db, logger)

	ids := []int{opts.TransactionId}
	if opts.All {
		var filter models.CashTransactionFilter
		if opts.BranchId > 0 {
			filter.BranchId = &opts.BranchId
		}
		transactions, err := models.ListCashTransactions(ctx, db, filter)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, t := range transactions {
			ids = append(ids, t.ID)
		}
	}

	failed := 0
	for _, id := range ids {
		t, err := service.RecalculateTotals(ctx, id)
		if err != nil {
			failed++
			if !opts.ContinueOnError {
				return fmt.Errorf("transaction %d: %w", id, err)
			}
			continue
		}
		logger.WithFields(logrus.Fields{
			"field":               "RecalculateTotals",
			"cash_transaction_id": id,
			"total_counted_value": t.TotalCountedValue.String(),
			"value_difference":    t.ValueDifference.String(),
		}).Info("totals recalculated")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recalculated %d transaction(s), %d failed\n", len(ids)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d transaction(s) failed", failed)
	}
	return nil
}
