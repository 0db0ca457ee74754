package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"github.com/shopspring/decimal"
)

// Reconciliation compares declared and counted values of a transaction with
// and without the effect of approved incidents.
type Reconciliation struct {
	TransactionId          int                 `json:"transaction_id"`
	Workflow               models.WorkflowKind `json:"workflow"`
	Status                 string              `json:"status"`
	TotalDeclaredValue     decimal.Decimal     `json:"total_declared_value"`
	TotalCountedValue      decimal.Decimal     `json:"total_counted_value"`
	ValueDifference        decimal.Decimal     `json:"value_difference"`
	ApprovedIncidentEffect decimal.Decimal     `json:"approved_incident_effect"`
	AdjustedCountedValue   decimal.Decimal     `json:"adjusted_counted_value"`
	AdjustedDifference     decimal.Decimal     `json:"adjusted_difference"`
	HasPendingIncidents    bool                `json:"has_pending_incidents"`
	WithinTolerance        bool                `json:"within_tolerance"`
}

func BuildReconciliation(t *models.CashTransaction, approvedEffect decimal.Decimal, hasPending bool, tolerance TolerancePolicy) Reconciliation {
	adjusted := t.TotalCountedValue.Add(approvedEffect)
	return Reconciliation{
		TransactionId:          t.ID,
		Workflow:               t.Workflow,
		Status:                 t.Status,
		TotalDeclaredValue:     t.TotalDeclaredValue,
		TotalCountedValue:      t.TotalCountedValue,
		ValueDifference:        t.ValueDifference,
		ApprovedIncidentEffect: approvedEffect,
		AdjustedCountedValue:   adjusted,
		AdjustedDifference:     adjusted.Sub(t.TotalDeclaredValue),
		HasPendingIncidents:    hasPending,
		WithinTolerance:        tolerance.IsWithinTolerance(t.TotalDeclaredValue, adjusted),
	}
}

func (s *CashCenter) Reconcile(ctx context.Context, transactionId int) (result *Reconciliation, err error) {
	ctx, span := startSpan(ctx, "workflow.Reconcile", transactionId)
	defer func() { endSpan(span, err) }()

	db := s.DB.WithContext(ctx)
	t, err := models.GetCashTransaction(ctx, db, transactionId)
	if err != nil {
		return nil, err
	}
	effect, err := models.SumApprovedEffectByTransaction(ctx, db, transactionId)
	if err != nil {
		s.logError("Reconcile", "sum approved effect", transactionId, err)
		return nil, err
	}
	pending, err := models.HasPendingByTransaction(ctx, db, transactionId)
	if err != nil {
		s.logError("Reconcile", "pending incidents", transactionId, err)
		return nil, err
	}
	r := BuildReconciliation(t, effect, pending, s.tolerance())
	return &r, nil
}
