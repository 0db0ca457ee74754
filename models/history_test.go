package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestSaveAuditFailsWhenSnapshotCannotBeMarshalled(t *testing.T) {
	tx := &gorm.DB{Statement: &gorm.Statement{}}

	err := SaveAudit(tx, AuditEvent{
		ActionName: "ResolveIncident",
		EntityType: AuditEntityIncident,
		EntityId:   4,
		After:      make(chan int),
	})
	assert.ErrorContains(t, err, "audit ResolveIncident: marshal after")

	err = SaveAudit(tx, AuditEvent{
		ActionName: "UpdateIncident",
		Before:     func() {},
	})
	assert.ErrorContains(t, err, "marshal before")
}
