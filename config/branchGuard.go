package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/cashcenter_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const branchColumn = "branch_id"

// BranchGuardPlugin scopes queries/updates/deletes to the request's branch
// when the model has a branch_id column and the context carries a branch id.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include branch_id manually.
// - Operator commands bypass it explicitly via appctx.ContextKeySkipBranchScope.
type BranchGuardPlugin struct{}

func NewBranchGuardPlugin() *BranchGuardPlugin { return &BranchGuardPlugin{} }

func (p *BranchGuardPlugin) Name() string { return "branch_guard" }

func (p *BranchGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("branch_guard:query", branchGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("branch_guard:row", branchGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("branch_guard:update", branchGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("branch_guard:delete", branchGuardCallback); err != nil {
		return err
	}
	return nil
}

func branchGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassBranchScope(ctx) {
		return
	}
	branchID, ok := branchIdFromContext(ctx)
	if !ok {
		return
	}

	if db.Statement.Schema == nil {
		return
	}
	hasBranchID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, branchColumn) {
			hasBranchID = true
			break
		}
	}
	if !hasBranchID {
		return
	}

	// Don't duplicate an explicit branch filter.
	if whereHasColumn(db.Statement.Clauses["WHERE"], branchColumn) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: branchColumn},
				Value:  branchID,
			},
		},
	})
}

func branchIdFromContext(ctx context.Context) (int, bool) {
	v, ok := appctx.GetInt(ctx, appctx.ContextKeyBranchId)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func shouldBypassBranchScope(ctx context.Context) bool {
	v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipBranchScope)
	return ok && v
}

func whereHasColumn(c clause.Clause, column string) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasColumn(e, column) {
			return true
		}
	}
	return false
}

func exprHasColumn(e clause.Expression, column string) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIs(v.Column, column)
	case clause.Neq:
		return colIs(v.Column, column)
	case clause.Gt:
		return colIs(v.Column, column)
	case clause.Gte:
		return colIs(v.Column, column)
	case clause.Lt:
		return colIs(v.Column, column)
	case clause.Lte:
		return colIs(v.Column, column)
	case clause.IN:
		return colIs(v.Column, column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasColumn(x, column) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasColumn(x, column) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), column)
	default:
		return false
	}
}

func colIs(col any, column string) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, column)
	case clause.Column:
		return strings.EqualFold(c.Name, column)
	default:
		return false
	}
}
