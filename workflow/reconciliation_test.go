package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuildReconciliationAppliesApprovedEffect(t *testing.T) {
	tx := &models.CashTransaction{
		ID:                 12,
		Workflow:           models.WorkflowCollection,
		Status:             string(models.CollectionPendienteRevision),
		TotalDeclaredValue: decimal.NewFromInt(7500),
		TotalCountedValue:  decimal.NewFromInt(8000),
		ValueDifference:    decimal.NewFromInt(500),
	}

	r := BuildReconciliation(tx, decimal.NewFromInt(-500), false, ZeroTolerancePolicy{})
	assert.Equal(t, 12, r.TransactionId)
	assert.True(t, r.AdjustedCountedValue.Equal(decimal.NewFromInt(7500)))
	assert.True(t, r.AdjustedDifference.IsZero())
	assert.True(t, r.ValueDifference.Equal(decimal.NewFromInt(500)))
	assert.True(t, r.WithinTolerance)

	r = BuildReconciliation(tx, decimal.Zero, true, ZeroTolerancePolicy{})
	assert.False(t, r.WithinTolerance)
	assert.True(t, r.HasPendingIncidents)
	assert.True(t, r.AdjustedDifference.Equal(decimal.NewFromInt(500)))
}
