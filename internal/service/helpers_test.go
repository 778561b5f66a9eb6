package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"eventsync/internal/config"
	"eventsync/internal/db"
	"eventsync/internal/models"
	gormrepository "eventsync/internal/repository/gorm"
	"eventsync/internal/source"
)

var baseNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func openStore(t *testing.T) (*gormrepository.Store, *gorm.DB) {
	t.Helper()
	d, err := db.Open(config.DBConfig{Driver: db.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(d) })
	if err := db.AutoMigrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormrepository.New(d.Gorm), d.Gorm
}

func candidate(id, title string, start time.Time) source.Candidate {
	end := start.Add(2 * time.Hour)
	img := "https://img.example.com/" + id + ".jpg"
	return source.Candidate{
		ExternalID:    id,
		Source:        "meetup",
		Title:         title,
		Description:   "Monthly meetup for founders",
		StartTime:     start,
		EndTime:       &end,
		URL:           "https://www.meetup.com/chennai/events/" + id,
		ImageURL:      &img,
		VenueName:     "Hub",
		VenueAddress:  "Chennai, India",
		OrganizerName: "Chennai Founders",
		IsFree:        true,
		Category:      "Startup",
		Metadata:      map[string]any{"source": "meetup", "fallback_image": false},
	}
}

func countEvents(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(&models.Event{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func mustEvent(t *testing.T, store *gormrepository.Store, externalID string) *models.Event {
	t.Helper()
	e, err := store.GetEventByExternalID(context.Background(), externalID)
	if err != nil {
		t.Fatalf("get %s: %v", externalID, err)
	}
	return e
}

// failingStore breaks one repository step to exercise rollbacks.
type failingStore struct {
	*gormrepository.Store
	insertsBeforeFailure int
	inserts              int
	failEventDelete      bool
}

var errInjected = errors.New("injected failure")

func (f *failingStore) InsertEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) error {
	f.inserts++
	if f.inserts > f.insertsBeforeFailure {
		return errInjected
	}
	return f.Store.InsertEventTx(ctx, tx, item)
}

func (f *failingStore) DeleteEventsByIDsTx(ctx context.Context, tx *gorm.DB, ids []uint64) (int64, error) {
	if f.failEventDelete {
		return 0, errInjected
	}
	return f.Store.DeleteEventsByIDsTx(ctx, tx, ids)
}
