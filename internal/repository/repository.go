package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"eventsync/internal/models"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateExternalID = errors.New("duplicate external_id")
)

// DisplayColumns are the event columns reconciliation may overwrite when a
// listing is sighted again. external_id, origin and created_at are never in it.
var DisplayColumns = []string{
	"title",
	"description",
	"start_time",
	"end_time",
	"url",
	"image_url",
	"venue_name",
	"venue_address",
	"organizer_name",
	"is_free",
	"online_event",
	"category",
	"source",
	"source_metadata",
	"updated_at",
}

type EventRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	FindEventsByExternalIDsTx(ctx context.Context, tx *gorm.DB, externalIDs []string) ([]models.Event, error)
	InsertEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) error
	UpdateEventDisplayTx(ctx context.Context, tx *gorm.DB, item *models.Event) error
	ListExpiredEventIDsTx(ctx context.Context, tx *gorm.DB, now time.Time) ([]uint64, error)
	DeleteRegistrationsByEventIDsTx(ctx context.Context, tx *gorm.DB, eventIDs []uint64) (int64, error)
	DeleteTicketClassesByEventIDsTx(ctx context.Context, tx *gorm.DB, eventIDs []uint64) (int64, error)
	DeleteEventsByIDsTx(ctx context.Context, tx *gorm.DB, eventIDs []uint64) (int64, error)
	GetEventByExternalID(ctx context.Context, externalID string) (*models.Event, error)
	ListEvents(ctx context.Context, params ListEventsParams) ([]models.Event, error)
	CountEvents(ctx context.Context, params ListEventsParams) (int64, error)
}

type SourceStateRepository interface {
	SaveSourceState(ctx context.Context, state *models.SourceState) error
	ListSourceStates(ctx context.Context) ([]models.SourceState, error)
}

type SettingsRepository interface {
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error)
}

type Repository interface {
	EventRepository
	SourceStateRepository
	SettingsRepository
}

type ListEventsParams struct {
	Limit   int
	Offset  int
	Source  *string
	Origin  *models.Origin
	Title   *string
	From    *time.Time
	OrderBy string
	Asc     *bool
}
