package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RegistrationPending   = "PENDING"
	RegistrationConfirmed = "CONFIRMED"
)

type Registration struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	EventID uint64 `gorm:"not null;index"`
	Event   *Event `gorm:"foreignKey:EventID;constraint:OnDelete:RESTRICT"`

	TicketClassID *uint64      `gorm:"index"`
	TicketClass   *TicketClass `gorm:"foreignKey:TicketClassID;constraint:OnDelete:RESTRICT"`

	UserEmail      string `gorm:"type:varchar(255);not null;index"`
	ConfirmationID string `gorm:"type:varchar(64);index"`
	Status         string `gorm:"type:varchar(16);not null;default:PENDING"`
	RawData        datatypes.JSON
	RegisteredAt   time.Time `gorm:"autoCreateTime"`
	CheckedInAt    *time.Time
}

func (Registration) TableName() string {
	return "registrations"
}
