package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"gorm.io/gorm"
)

// TransitionProvision moves a Provision transaction one step along its
// pipeline.
func (s *CashCenter) TransitionProvision(ctx context.Context, id int, next models.ProvisionStatus) (result *models.CashTransaction, err error) {
	ctx, span := startSpan(ctx, "workflow.TransitionProvision", id)
	defer func() { endSpan(span, err) }()
	ctx, _ = utils.EnsureCorrelationId(ctx)

	machine := ProvisionMachine{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := models.LockCashTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.Workflow != models.WorkflowProvision {
			return fmt.Errorf("%w: transaction %d is %s", models.ErrWorkflowMismatch, id, t.Workflow)
		}
		current := models.ProvisionStatus(t.Status)
		if err := machine.EnsureCanMove(current, next, id); err != nil {
			return err
		}
		if err := s.provisionGate(ctx, tx, t, next); err != nil {
			return err
		}

		before := *t
		if err := models.UpdateCashTransactionStatus(ctx, tx, t, string(next)); err != nil {
			return err
		}
		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName:  "TransitionProvision",
			EntityType:  models.AuditEntityCashTransaction,
			EntityId:    t.ID,
			Before:      before,
			After:       t,
			Description: describeProvisionMove(current, next),
		}); err != nil {
			return err
		}
		if err := models.EnqueueOutboxEvent(ctx, tx, t.BranchId, models.EventTransactionStatusChanged, models.ReferenceTypeCashTransaction, t.ID, "", statusChangedPayload{
			TransactionId:  t.ID,
			ServiceOrderId: t.ServiceOrderId,
			Workflow:       t.Workflow,
			From:           string(current),
			To:             string(next),
			Version:        t.Version,
		}); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		s.logTransitionError("TransitionProvision", id, string(next), err)
		return nil, err
	}
	return result, nil
}

func (s *CashCenter) provisionGate(ctx context.Context, tx *gorm.DB, t *models.CashTransaction, next models.ProvisionStatus) error {
	policy := CountingPolicyFor(models.WorkflowProvision)
	snapshot := SnapshotOf(t)

	switch next {
	case models.ProvisionListoParaEntrega:
		if !policy.CanFinalize(snapshot) {
			return fmt.Errorf("%w: transaction %d cannot finish preparation (status %s, counted %s)", models.ErrPolicyRejected, t.ID, t.Status, t.TotalCountedValue.String())
		}
	case models.ProvisionEntregado:
		if !policy.CanApprove(snapshot) {
			return fmt.Errorf("%w: transaction %d is not ready for delivery", models.ErrPolicyRejected, t.ID)
		}
		if err := s.ensureNoPendingIncidents(ctx, tx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *CashCenter) MarkReadyForDelivery(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionProvision(ctx, id, models.ProvisionListoParaEntrega)
}

func (s *CashCenter) Deliver(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionProvision(ctx, id, models.ProvisionEntregado)
}
