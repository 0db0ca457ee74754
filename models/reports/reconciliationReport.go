package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReconciliationRow struct {
	TransactionId          int                 `json:"transaction_id"`
	BranchId               int                 `json:"branch_id"`
	ServiceOrderId         string              `json:"service_order_id"`
	Workflow               models.WorkflowKind `json:"workflow"`
	Status                 string              `json:"status"`
	Currency               string              `json:"currency"`
	TotalDeclaredValue     decimal.Decimal     `json:"total_declared_value"`
	TotalCountedValue      decimal.Decimal     `json:"total_counted_value"`
	ValueDifference        decimal.Decimal     `json:"value_difference"`
	ApprovedIncidentEffect decimal.Decimal     `json:"approved_incident_effect"`
	AdjustedDifference     decimal.Decimal     `json:"adjusted_difference"`
	PendingIncidents       int                 `json:"pending_incidents"`
	WithinTolerance        bool                `json:"within_tolerance"`
	CreatedAt              time.Time           `json:"created_at"`
}

type ReconciliationFilter struct {
	BranchId *int
	Workflow *models.WorkflowKind
	FromDate *time.Time
	ToDate   *time.Time
	// WithinTolerance decides the verdict column; nil means exact match.
	WithinTolerance func(declared decimal.Decimal, counted decimal.Decimal) bool
}

// BuildReconciliationRows returns one row per transaction created in the
// filter's range, with the approved incident effect applied.
func BuildReconciliationRows(ctx context.Context, db *gorm.DB, filter ReconciliationFilter) ([]ReconciliationRow, error) {
	transactions, err := models.ListCashTransactions(ctx, db, models.CashTransactionFilter{
		BranchId: filter.BranchId,
		Workflow: filter.Workflow,
		FromDate: filter.FromDate,
		ToDate:   filter.ToDate,
	})
	if err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return []ReconciliationRow{}, nil
	}

	ids := make([]int, 0, len(transactions))
	for _, t := range transactions {
		ids = append(ids, t.ID)
	}
	incidents, err := utils.FetchModelsWhere[models.Incident](ctx, db, "cash_transaction_id IN ?", ids)
	if err != nil {
		return nil, err
	}
	byTransaction := make(map[int][]models.Incident, len(transactions))
	for _, i := range incidents {
		byTransaction[i.CashTransactionId] = append(byTransaction[i.CashTransactionId], *i)
	}

	withinTolerance := filter.WithinTolerance
	if withinTolerance == nil {
		withinTolerance = func(declared decimal.Decimal, counted decimal.Decimal) bool {
			return declared.Equal(counted)
		}
	}

	rows := make([]ReconciliationRow, 0, len(transactions))
	for _, t := range transactions {
		effect, err := models.SumApprovedEffect(byTransaction[t.ID])
		if err != nil {
			return nil, err
		}
		pending := 0
		for _, i := range byTransaction[t.ID] {
			if i.Status.IsPending() {
				pending++
			}
		}
		adjusted := t.TotalCountedValue.Add(effect)
		rows = append(rows, ReconciliationRow{
			TransactionId:          t.ID,
			BranchId:               t.BranchId,
			ServiceOrderId:         t.ServiceOrderId,
			Workflow:               t.Workflow,
			Status:                 t.Status,
			Currency:               t.Currency,
			TotalDeclaredValue:     t.TotalDeclaredValue,
			TotalCountedValue:      t.TotalCountedValue,
			ValueDifference:        t.ValueDifference,
			ApprovedIncidentEffect: effect,
			AdjustedDifference:     adjusted.Sub(t.TotalDeclaredValue),
			PendingIncidents:       pending,
			WithinTolerance:        withinTolerance(t.TotalDeclaredValue, adjusted),
			CreatedAt:              t.CreatedAt,
		})
	}
	return rows, nil
}
