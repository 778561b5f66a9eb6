package models

import (
	"time"

	"gorm.io/datatypes"
)

// Origin tells adapter-owned rows apart from rows created through the
// application. Reconciliation only ever matches OriginScraped.
type Origin string

const (
	OriginScraped Origin = "scraped"
	OriginUser    Origin = "user"
)

func (o Origin) Valid() bool {
	return o == OriginScraped || o == OriginUser
}

type Event struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// ExternalID is "<source>_<native id>" for scraped rows.
	ExternalID string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Origin     Origin `gorm:"type:varchar(16);index;not null;default:scraped"`
	Source     string `gorm:"type:varchar(64);index"`

	Title          string     `gorm:"type:text;not null"`
	Description    string     `gorm:"type:text"`
	StartTime      time.Time  `gorm:"not null;index"`
	EndTime        *time.Time `gorm:"index"`
	URL            string     `gorm:"type:text"`
	ImageURL       *string    `gorm:"type:text"`
	VenueName      string     `gorm:"type:text"`
	VenueAddress   string     `gorm:"type:text"`
	OrganizerName  string     `gorm:"type:text"`
	IsFree         bool       `gorm:"not null"`
	OnlineEvent    bool       `gorm:"not null;default:false"`
	Category       string     `gorm:"type:varchar(64);default:Business"`
	Capacity       *int
	SourceMetadata datatypes.JSON

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}

// ExpiredAt reports whether the event is in the past relative to now.
func (e Event) ExpiredAt(now time.Time) bool {
	if e.EndTime != nil {
		return e.EndTime.Before(now)
	}
	return e.StartTime.Before(now)
}
