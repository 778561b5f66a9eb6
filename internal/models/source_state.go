package models

import (
	"time"

	"gorm.io/datatypes"
)

// SourceState is the latest fetch outcome of one adapter.
type SourceState struct {
	Source         string `gorm:"primaryKey;type:varchar(64)"`
	LastRunID      string `gorm:"type:varchar(64)"`
	LastAttemptAt  *time.Time
	LastSuccessAt  *time.Time
	LastError      *string `gorm:"type:text"`
	LastCandidates int     `gorm:"not null;default:0"`
	LastDuration   int64   `gorm:"not null;default:0"` // milliseconds
	StatsJSON      datatypes.JSON
}

func (SourceState) TableName() string {
	return "source_states"
}
