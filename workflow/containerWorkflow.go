package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ContainerSubtotal struct {
	ContainerId int                    `json:"container_id"`
	Code        string                 `json:"code"`
	Type        models.ContainerType   `json:"type"`
	Status      models.ContainerStatus `json:"status"`
	Subtotal    decimal.Decimal        `json:"subtotal"`
}

// RecalculatedTotals is the header state after a submission.
type RecalculatedTotals struct {
	TransactionId      int                 `json:"transaction_id"`
	TotalDeclaredValue decimal.Decimal     `json:"total_declared_value"`
	TotalCountedValue  decimal.Decimal     `json:"total_counted_value"`
	ValueDifference    decimal.Decimal     `json:"value_difference"`
	BagCount           int                 `json:"bag_count"`
	EnvelopeCount      int                 `json:"envelope_count"`
	Containers         []ContainerSubtotal `json:"containers"`
	Version            int                 `json:"version"`
	RecalculatedAt     *time.Time          `json:"recalculated_at"`
}

func newRecalculatedTotals(t *models.CashTransaction, saved []models.Container) *RecalculatedTotals {
	result := &RecalculatedTotals{
		TransactionId:      t.ID,
		TotalDeclaredValue: t.TotalDeclaredValue,
		TotalCountedValue:  t.TotalCountedValue,
		ValueDifference:    t.ValueDifference,
		BagCount:           t.DeclaredBagCount,
		EnvelopeCount:      t.DeclaredEnvelopeCount,
		Containers:         make([]ContainerSubtotal, 0, len(saved)),
		Version:            t.Version,
		RecalculatedAt:     t.LastRecalculatedAt,
	}
	for _, c := range saved {
		result.Containers = append(result.Containers, ContainerSubtotal{
			ContainerId: c.ID,
			Code:        c.Code,
			Type:        c.Type,
			Status:      c.Status,
			Subtotal:    c.Subtotal,
		})
	}
	return result
}

// SubmitContainers saves a container submission and recalculates the
// transaction totals in the same DB transaction.
func (s *CashCenter) SubmitContainers(ctx context.Context, transactionId int, submissions []models.NewContainer, userId int) (result *RecalculatedTotals, err error) {
	ctx, span := startSpan(ctx, "workflow.SubmitContainers", transactionId)
	defer func() { endSpan(span, err) }()
	ctx, _ = utils.EnsureCorrelationId(ctx)

	for i := range submissions {
		if err = utils.ValidateStruct(&submissions[i]); err != nil {
			return nil, fmt.Errorf("container %q: %w", submissions[i].ContainerCode, err)
		}
	}

	if s.UseRedisLock {
		release, lockErr := utils.ObtainTransactionLock(ctx, transactionId, moduleName, "SubmitContainers")
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		defer release()
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := models.LockCashTransaction(ctx, tx, transactionId)
		if err != nil {
			return err
		}
		if !acceptsContainers(SnapshotOf(t)) {
			return fmt.Errorf("%w: %s transaction %d is %s", models.ErrSubmissionNotAllowed, t.Workflow, t.ID, t.Status)
		}
		valueTypes, containers := valuePoliciesFor(t.Workflow)

		saved, err := models.SaveContainersAndDetails(ctx, tx, transactionId, submissions, userId, valueTypes, containers)
		if err != nil {
			return err
		}
		before := *t
		recalculated, err := models.RecalculateTotals(ctx, tx, transactionId)
		if err != nil {
			return err
		}
		result = newRecalculatedTotals(recalculated, saved)

		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName: "SubmitContainers",
			EntityType: models.AuditEntityCashTransaction,
			EntityId:   transactionId,
			Before: map[string]interface{}{
				"total_counted_value": before.TotalCountedValue,
				"value_difference":    before.ValueDifference,
			},
			After:       result,
			Description: fmt.Sprintf("%d container(s) submitted; counted total is %s.", len(saved), recalculated.TotalCountedValue.StringFixed(2)),
		}); err != nil {
			return err
		}
		return models.EnqueueOutboxEvent(ctx, tx, t.BranchId, models.EventContainersSubmitted, models.ReferenceTypeCashTransaction, t.ID, "", result)
	})
	if err != nil {
		s.logError("SubmitContainers", "submit containers", map[string]interface{}{"transaction_id": transactionId, "containers": len(submissions)}, err)
		return nil, err
	}
	return result, nil
}

// RecalculateTotals re-runs the totals of one transaction outside a
// submission, e.g. from the operator CLI.
func (s *CashCenter) RecalculateTotals(ctx context.Context, transactionId int) (result *models.CashTransaction, err error) {
	ctx, span := startSpan(ctx, "workflow.RecalculateTotals", transactionId)
	defer func() { endSpan(span, err) }()

	if s.UseRedisLock {
		release, lockErr := utils.ObtainTransactionLock(ctx, transactionId, moduleName, "RecalculateTotals")
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		defer release()
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := models.LockCashTransaction(ctx, tx, transactionId); err != nil {
			return err
		}
		result, err = models.RecalculateTotals(ctx, tx, transactionId)
		return err
	})
	if err != nil {
		s.logError("RecalculateTotals", "recalculate totals", transactionId, err)
		return nil, err
	}
	return result, nil
}
