package models

import (
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"gorm.io/gorm"
)

// History is the audit sink. Rows are written in the same DB transaction as
// the change they describe.
type History struct {
	ID            int          `gorm:"primary_key" json:"id"`
	BranchId      int          `gorm:"index;not null;default:0" json:"branch_id"`
	ActionName    string       `gorm:"size:64;not null" json:"action_name"`
	EntityType    string       `gorm:"size:64;not null;index:idx_history_entity,priority:1" json:"entity_type"`
	EntityId      int          `gorm:"not null;index:idx_history_entity,priority:2" json:"entity_id"`
	Outcome       AuditOutcome `gorm:"type:enum('Info','Warning','Error');not null;default:'Info'" json:"outcome"`
	Before        string       `gorm:"type:text" json:"before"`
	After         string       `gorm:"type:text" json:"after"`
	Description   string       `gorm:"type:text;not null" json:"description"`
	UserId        int          `gorm:"index;not null;default:0" json:"user_id"`
	UserName      string       `gorm:"size:100" json:"user_name"`
	CorrelationId string       `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

type AuditEvent struct {
	ActionName  string
	EntityType  string
	EntityId    int
	Outcome     AuditOutcome
	Before      interface{}
	After       interface{}
	Description string
}

const (
	AuditEntityCashTransaction = "CashTransaction"
	AuditEntityIncident        = "Incident"
)

// SaveAudit writes one audit row using tx. User, branch and correlation id
// come from the statement context; operator commands without a user are
// recorded as user 0.
func SaveAudit(tx *gorm.DB, event AuditEvent) error {
	ctx := tx.Statement.Context

	var history History
	if event.Before != nil {
		b, err := json.Marshal(event.Before)
		if err != nil {
			return fmt.Errorf("audit %s: marshal before: %w", event.ActionName, err)
		}
		history.Before = string(b)
	}
	if event.After != nil {
		a, err := json.Marshal(event.After)
		if err != nil {
			return fmt.Errorf("audit %s: marshal after: %w", event.ActionName, err)
		}
		history.After = string(a)
	}
	if event.Outcome == "" {
		event.Outcome = AuditOutcomeInfo
	}

	history.ActionName = event.ActionName
	history.EntityType = event.EntityType
	history.EntityId = event.EntityId
	history.Outcome = event.Outcome
	history.Description = event.Description
	if ctx != nil {
		history.UserId, _ = utils.GetUserIdFromContext(ctx)
		history.UserName, _ = utils.GetUserNameFromContext(ctx)
		history.BranchId, _ = utils.GetBranchIdFromContext(ctx)
		history.CorrelationId, _ = utils.GetCorrelationIdFromContext(ctx)
	}
	if history.UserName == "" && history.UserId == 0 {
		history.UserName = "system"
	}

	return tx.Create(&history).Error
}
