package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type incidentResolvedPayload struct {
	IncidentId    int                     `json:"incident_id"`
	TransactionId int                     `json:"transaction_id"`
	Category      models.IncidentCategory `json:"category"`
	From          models.IncidentStatus   `json:"from"`
	To            models.IncidentStatus   `json:"to"`
	Effect        decimal.Decimal         `json:"effect"`
}

func (s *CashCenter) RegisterIncident(ctx context.Context, input *models.NewIncident, reporterId int) (result *models.Incident, err error) {
	ctx, span := startSpan(ctx, "workflow.RegisterIncident", input.CashTransactionId)
	defer func() { endSpan(span, err) }()
	ctx, _ = utils.EnsureCorrelationId(ctx)

	if err = utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		incident, err := models.RegisterIncident(ctx, tx, input, reporterId)
		if err != nil {
			return err
		}
		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName:  "RegisterIncident",
			EntityType:  models.AuditEntityIncident,
			EntityId:    incident.ID,
			After:       incident,
			Description: fmt.Sprintf("%s incident of %s reported on transaction %d.", incident.Category, incident.AffectedAmount.StringFixed(2), incident.CashTransactionId),
		}); err != nil {
			return err
		}
		result = incident
		return nil
	})
	if err != nil {
		s.logError("RegisterIncident", "register incident", input, err)
		return nil, err
	}
	return result, nil
}

// ResolveIncident moves an incident to newStatus. Resolutions of categories
// with a monetary effect recalculate the transaction totals in the same DB
// transaction.
func (s *CashCenter) ResolveIncident(ctx context.Context, id int, newStatus models.IncidentStatus, resolverId int) (result *models.Incident, err error) {
	ctx, span := startSpan(ctx, "workflow.ResolveIncident", 0)
	defer func() { endSpan(span, err) }()
	ctx, _ = utils.EnsureCorrelationId(ctx)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := models.GetIncident(ctx, tx, id)
		if err != nil {
			return err
		}
		// lock order: header first, then incident
		t, err := models.LockCashTransaction(ctx, tx, current.CashTransactionId)
		if err != nil {
			return err
		}
		before, after, err := models.ResolveIncident(ctx, tx, id, newStatus, resolverId)
		if err != nil {
			return err
		}
		sign, err := after.Category.Sign()
		if err != nil {
			return err
		}
		if sign != 0 {
			if _, err := models.RecalculateTotals(ctx, tx, after.CashTransactionId); err != nil {
				return err
			}
		}
		effect := decimal.Zero
		if after.Status == models.IncidentStatusApproved {
			if effect, err = after.Effect(); err != nil {
				return err
			}
		}

		outcome := models.AuditOutcomeInfo
		if after.Status == models.IncidentStatusRejected {
			outcome = models.AuditOutcomeWarning
		}
		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName:  "ResolveIncident",
			EntityType:  models.AuditEntityIncident,
			EntityId:    after.ID,
			Outcome:     outcome,
			Before:      before,
			After:       after,
			Description: fmt.Sprintf("Incident %d moved from %s to %s.", after.ID, before.Status, after.Status),
		}); err != nil {
			return err
		}
		if err := models.EnqueueOutboxEvent(ctx, tx, t.BranchId, models.EventIncidentResolved, models.ReferenceTypeIncident, after.ID, "", incidentResolvedPayload{
			IncidentId:    after.ID,
			TransactionId: after.CashTransactionId,
			Category:      after.Category,
			From:          before.Status,
			To:            after.Status,
			Effect:        effect,
		}); err != nil {
			return err
		}
		result = after
		return nil
	})
	if err != nil {
		s.logTransitionError("ResolveIncident", id, string(newStatus), err)
		return nil, err
	}
	return result, nil
}

func (s *CashCenter) UpdateIncident(ctx context.Context, id int, input *models.IncidentUpdate) (result *models.Incident, err error) {
	ctx, span := startSpan(ctx, "workflow.UpdateIncident", 0)
	defer func() { endSpan(span, err) }()

	if err = utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := models.GetIncident(ctx, tx, id)
		if err != nil {
			return err
		}
		incident, err := models.UpdateIncident(ctx, tx, id, input)
		if err != nil {
			return err
		}
		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName:  "UpdateIncident",
			EntityType:  models.AuditEntityIncident,
			EntityId:    incident.ID,
			Before:      before,
			After:       incident,
			Description: fmt.Sprintf("Incident %d updated.", incident.ID),
		}); err != nil {
			return err
		}
		result = incident
		return nil
	})
	if err != nil {
		s.logError("UpdateIncident", "update incident", id, err)
		return nil, err
	}
	return result, nil
}

func (s *CashCenter) DeleteIncident(ctx context.Context, id int) (result *models.Incident, err error) {
	ctx, span := startSpan(ctx, "workflow.DeleteIncident", 0)
	defer func() { endSpan(span, err) }()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		incident, err := models.DeleteIncident(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := models.SaveAudit(tx, models.AuditEvent{
			ActionName:  "DeleteIncident",
			EntityType:  models.AuditEntityIncident,
			EntityId:    incident.ID,
			Outcome:     models.AuditOutcomeWarning,
			Before:      incident,
			Description: fmt.Sprintf("Incident %d deleted.", incident.ID),
		}); err != nil {
			return err
		}
		result = incident
		return nil
	})
	if err != nil {
		s.logError("DeleteIncident", "delete incident", id, err)
		return nil, err
	}
	return result, nil
}
