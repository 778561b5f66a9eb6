package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketClass is a priced tier of an event. Owned by the ticketing side of
// the application; the pipeline only removes it together with its event.
type TicketClass struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	EventID uint64 `gorm:"not null;index"`
	Event   *Event `gorm:"foreignKey:EventID;constraint:OnDelete:RESTRICT"`

	Name         string          `gorm:"type:varchar(255);not null"`
	Type         string          `gorm:"type:varchar(32);not null;default:free"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Currency     string          `gorm:"type:varchar(8);not null;default:INR"`
	Quantity     int             `gorm:"not null;default:0"`
	QuantitySold int             `gorm:"not null;default:0"`
	SalesStart   *time.Time
	SalesEnd     *time.Time
	IsActive     bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (TicketClass) TableName() string {
	return "ticket_classes"
}
