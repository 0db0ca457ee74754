package main

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	BranchId int
	UserId   int
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cashcenter",
		Short:         "Cash-center transaction processing operator commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().IntVar(&opts.BranchId, "branch-id", 0, "restrict the command to one branch (default: all branches)")
	cmd.PersistentFlags().IntVar(&opts.UserId, "user-id", 0, "operator user id recorded in audit rows")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRecalculateCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewDispatchCommand(opts))
	cmd.AddCommand(NewRequeueOutboxCommand(opts))
	cmd.AddCommand(NewShowTransactionCommand(opts))

	return cmd
}

// operatorContext scopes ctx to --branch-id, or bypasses branch scoping when
// no branch was given.
func operatorContext(ctx context.Context, opts *RootOptions) context.Context {
	ctx, _ = utils.EnsureCorrelationId(ctx)
	if opts.UserId > 0 {
		ctx = utils.SetUserIdInContext(ctx, opts.UserId)
		ctx = utils.SetUserNameInContext(ctx, "operator")
	}
	if opts.BranchId > 0 {
		return utils.SetBranchIdInContext(ctx, opts.BranchId)
	}
	return utils.SetSkipBranchScopeInContext(ctx, true)
}

func connectDatabase() (*gorm.DB, error) {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	return db, nil
}
