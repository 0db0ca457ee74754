package config

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/cashcenter_backend/appctx"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/clause"
)

func TestWhereHasColumn(t *testing.T) {
	where := clause.Clause{Expression: clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Name: "id"}, Value: 1},
		clause.OrConditions{Exprs: []clause.Expression{
			clause.IN{Column: "Branch_Id", Values: []interface{}{1, 2}},
		}},
	}}}
	assert.True(t, whereHasColumn(where, "branch_id"))
	assert.False(t, whereHasColumn(where, "status"))

	raw := clause.Clause{Expression: clause.Where{Exprs: []clause.Expression{
		clause.Expr{SQL: "branch_id = ? AND status = ?"},
	}}}
	assert.True(t, whereHasColumn(raw, "branch_id"))

	assert.False(t, whereHasColumn(clause.Clause{}, "branch_id"))
}

func TestBranchScopeFromContext(t *testing.T) {
	ctx := context.Background()
	_, ok := branchIdFromContext(ctx)
	assert.False(t, ok)

	_, ok = branchIdFromContext(appctx.Set(ctx, appctx.ContextKeyBranchId, 0))
	assert.False(t, ok)

	id, ok := branchIdFromContext(appctx.Set(ctx, appctx.ContextKeyBranchId, 4))
	assert.True(t, ok)
	assert.Equal(t, 4, id)

	assert.False(t, shouldBypassBranchScope(ctx))
	assert.True(t, shouldBypassBranchScope(appctx.Set(ctx, appctx.ContextKeySkipBranchScope, true)))
}
