package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const (
	EventTransactionStatusChanged = "TransactionStatusChanged"
	EventServiceProgressChanged   = "ServiceProgressChanged"
	EventIncidentResolved         = "IncidentResolved"
	EventContainersSubmitted      = "ContainersSubmitted"
)

const (
	ReferenceTypeCashTransaction = "CashTransaction"
	ReferenceTypeServiceOrder    = "ServiceOrder"
	ReferenceTypeIncident        = "Incident"
)

// OutboxEvent is inserted in the same DB transaction as the business change
// and published after commit by the dispatcher.
type OutboxEvent struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	BranchId         int        `gorm:"index;not null;default:0" json:"branch_id"`
	EventType        string     `gorm:"size:64;not null;index" json:"event_type"`
	ReferenceType    string     `gorm:"size:64;not null;index:idx_outbox_ref,priority:1" json:"reference_type"`
	ReferenceId      int        `gorm:"not null;index:idx_outbox_ref,priority:2" json:"reference_id"`
	ReferenceKey     string     `gorm:"size:64" json:"reference_key"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// EnqueueOutboxEvent stores an event for later publishing. referenceKey is
// used for references without an integer id (service orders).
func EnqueueOutboxEvent(ctx context.Context, tx *gorm.DB, branchId int, eventType string, referenceType string, referenceId int, referenceKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxEvent{
		BranchId:      branchId,
		EventType:     eventType,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		ReferenceKey:  referenceKey,
		Payload:       body,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToPubSubMessage(record OutboxEvent) config.PubSubMessage {
	return config.PubSubMessage{
		ID:            record.ID,
		BranchId:      record.BranchId,
		EventType:     record.EventType,
		ReferenceType: record.ReferenceType,
		ReferenceId:   record.ReferenceId,
		Payload:       json.RawMessage(record.Payload),
		OccurredAt:    record.CreatedAt,
		CorrelationId: record.CorrelationId,
	}
}

// RequeueOutboxEvents puts DEAD or FAILED events back to PENDING with a fresh
// attempt budget. referenceType "" requeues every dead event; referenceId 0
// matches all ids of the type.
func RequeueOutboxEvents(ctx context.Context, db *gorm.DB, referenceType string, referenceId int) (int64, error) {
	q := db.WithContext(ctx).
		Model(&OutboxEvent{}).
		Where("publish_status IN ?", []string{OutboxPublishStatusDead, OutboxPublishStatusFailed})
	if referenceType != "" {
		q = q.Where("reference_type = ?", referenceType)
		if referenceId > 0 {
			q = q.Where("reference_id = ?", referenceId)
		}
	}
	res := q.Updates(map[string]interface{}{
		"locked_at":          nil,
		"locked_by":          nil,
		"publish_status":     OutboxPublishStatusPending,
		"publish_attempts":   0,
		"next_attempt_at":    nil,
		"last_publish_error": nil,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
