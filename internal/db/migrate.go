package db

import (
	"eventsync/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	// parents before dependents so the foreign keys resolve
	return db.Gorm.AutoMigrate(
		&models.Event{},
		&models.TicketClass{},
		&models.Registration{},
		&models.SourceState{},
		&models.SystemSetting{},
	)
}
