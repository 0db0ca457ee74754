package models

import (
	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"gorm.io/gorm"
)

// MigrateTable creates or updates every cash-center table on the global DB.
func MigrateTable() error {
	return MigrateTableOn(config.GetDB())
}

func MigrateTableOn(db *gorm.DB) error {
	return db.AutoMigrate(
		&CashTransaction{}, &Container{}, &ValueDetail{},
		&Incident{},
		&ServiceOrder{},
		&History{},
		&OutboxEvent{},
	)
}
