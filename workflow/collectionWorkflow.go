package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type statusChangedPayload struct {
	TransactionId  int                 `json:"transaction_id"`
	ServiceOrderId string              `json:"service_order_id"`
	Workflow       models.WorkflowKind `json:"workflow"`
	From           string              `json:"from"`
	To             string              `json:"to"`
	Version        int                 `json:"version"`
}

// CreateCashTransaction registers a transaction in its workflow's initial
// status. Collection transactions also sync their service order.
func (s *CashCenter) CreateCashTransaction(ctx context.Context, input *models.NewCashTransaction) (result *models.CashTransaction, err error) {
	ctx, span := startSpan(ctx, "workflow.CreateCashTransaction", 0)
	defer func() { endSpan(span, err) }()
	ctx, _ = utils.EnsureCorrelationId(ctx)

	if err = utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.RegisteredBy == 0 {
		input.RegisteredBy, _ = utils.GetUserIdFromContext(ctx)
	}
	if input.RegisteredByName == "" {
		input.RegisteredByName, _ = utils.GetUserNameFromContext(ctx)
	}
	policy := CountingPolicyFor(input.Workflow)
	if err = policy.CheckCreate(input.ServiceOrderId, input.Currency, input.TotalDeclared()); err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := models.CreateCashTransaction(ctx, tx, input, policy.InitialStatus())
		if err != nil {
			return err
		}
		if created.Workflow == models.WorkflowCollection {
			if _, err := SyncServiceIfAdvance(ctx, models.NewServiceOrderRepo(tx), created.ServiceOrderId, models.CollectionRegistradoTesoreria); err != nil {
				return err
			}
		}
		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName:  "CreateCashTransaction",
			EntityType:  models.AuditEntityCashTransaction,
			EntityId:    created.ID,
			After:       created,
			Description: fmt.Sprintf("%s transaction registered for service order %s with declared total %s %s.", created.Workflow, created.ServiceOrderId, created.Currency, created.TotalDeclaredValue.StringFixed(2)),
		}); err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		s.logError("CreateCashTransaction", "create transaction", input, err)
		return nil, err
	}
	return result, nil
}

// TransitionCollection moves a Collection transaction to next. The header is
// locked for the whole unit of work, so validation and the status write see
// the same current status.
func (s *CashCenter) TransitionCollection(ctx context.Context, id int, next models.CollectionStatus) (result *models.CashTransaction, err error) {
	ctx, span := startSpan(ctx, "workflow.TransitionCollection", id)
	defer func() { endSpan(span, err) }()
	ctx, _ = utils.EnsureCorrelationId(ctx)

	machine := CollectionMachine{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := models.LockCashTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.Workflow != models.WorkflowCollection {
			return fmt.Errorf("%w: transaction %d is %s", models.ErrWorkflowMismatch, id, t.Workflow)
		}
		current := collectionStatusOf(t)
		if err := machine.EnsureCanMove(current, next, id); err != nil {
			return err
		}
		if err := s.collectionGate(ctx, tx, t, next); err != nil {
			return err
		}

		before := *t
		if err := models.UpdateCashTransactionStatus(ctx, tx, t, string(next)); err != nil {
			return err
		}
		if _, err := SyncServiceIfAdvance(ctx, models.NewServiceOrderRepo(tx), t.ServiceOrderId, next); err != nil {
			return err
		}
		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName:  "TransitionCollection",
			EntityType:  models.AuditEntityCashTransaction,
			EntityId:    t.ID,
			Before:      before,
			After:       t,
			Description: describeCollectionMove(current, next),
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
		s.logTransitionError("TransitionCollection", id, string(next), err)
		return nil, err
	}
	return result, nil
}

// collectionGate applies the counting, incident and tolerance preconditions
// of the review and approval moves.
func (s *CashCenter) collectionGate(ctx context.Context, tx *gorm.DB, t *models.CashTransaction, next models.CollectionStatus) error {
	policy := CountingPolicyFor(models.WorkflowCollection)
	snapshot := SnapshotOf(t)

	switch next {
	case models.CollectionPendienteRevision:
		if !policy.CanFinalize(snapshot) {
			return fmt.Errorf("%w: transaction %d cannot finalize counting (status %s, counted %s)", models.ErrPolicyRejected, t.ID, t.Status, t.TotalCountedValue.String())
		}
	case models.CollectionAprobado:
		if !policy.CanApprove(snapshot) {
			return fmt.Errorf("%w: transaction %d is not pending review", models.ErrPolicyRejected, t.ID)
		}
		if err := s.ensureNoPendingIncidents(ctx, tx, t.ID); err != nil {
			return err
		}
		effect, err := models.SumApprovedEffectByTransaction(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		adjusted := t.TotalCountedValue.Add(effect)
		if !s.tolerance().IsWithinTolerance(t.TotalDeclaredValue, adjusted) {
			return fmt.Errorf("%w: declared %s, counted %s, approved incident effect %s", models.ErrOutOfTolerance,
				t.TotalDeclaredValue.String(), t.TotalCountedValue.String(), effect.String())
		}
	}
	return nil
}

func (s *CashCenter) ensureNoPendingIncidents(ctx context.Context, tx *gorm.DB, transactionId int) error {
	if !s.RequireResolvedIncidents {
		return nil
	}
	pending, err := models.HasPendingByTransaction(ctx, tx, transactionId)
	if err != nil {
		return err
	}
	if pending {
		return fmt.Errorf("%w: transaction %d", models.ErrPendingIncidents, transactionId)
	}
	return nil
}

func (s *CashCenter) tolerance() TolerancePolicy {
	if s.Tolerance == nil {
		return ZeroTolerancePolicy{}
	}
	return s.Tolerance
}

// logTransitionError logs rejected moves as warnings and everything else as
// errors.
func (s *CashCenter) logTransitionError(funcName string, id int, target string, err error) {
	if s.Logger == nil {
		return
	}
	if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrPolicyRejected) ||
		errors.Is(err, models.ErrPendingIncidents) || errors.Is(err, models.ErrOutOfTolerance) {
		s.Logger.WithFields(logrus.Fields{
			"field":               funcName,
			"cash_transaction_id": id,
			"target":              target,
		}).Warn(err.Error())
		return
	}
	s.logError(funcName, "transition transaction", map[string]interface{}{"id": id, "target": target}, err)
}

func (s *CashCenter) EnqueueForCounting(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionCollection(ctx, id, models.CollectionEncoladoParaConteo)
}

func (s *CashCenter) StartCounting(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionCollection(ctx, id, models.CollectionConteo)
}

func (s *CashCenter) FinalizeCounting(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionCollection(ctx, id, models.CollectionPendienteRevision)
}

func (s *CashCenter) ApproveCollection(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionCollection(ctx, id, models.CollectionAprobado)
}

func (s *CashCenter) RejectCollection(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionCollection(ctx, id, models.CollectionRechazado)
}

func (s *CashCenter) CancelCollection(ctx context.Context, id int) (*models.CashTransaction, error) {
	return s.TransitionCollection(ctx, id, models.CollectionCancelado)
}
