package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"eventsync/internal/models"
)

func seedEvent(t *testing.T, gdb *gorm.DB, externalID string, start time.Time, end *time.Time) models.Event {
	t.Helper()
	e := models.Event{
		ExternalID: externalID,
		Origin:     models.OriginScraped,
		Source:     "meetup",
		Title:      "Event " + externalID,
		StartTime:  start,
		EndTime:    end,
		IsFree:     true,
	}
	if err := gdb.Create(&e).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return e
}

func seedTicketAndRegistration(t *testing.T, gdb *gorm.DB, eventID uint64) {
	t.Helper()
	tc := models.TicketClass{EventID: eventID, Name: "General", Type: "paid", Price: decimal.NewFromInt(499), IsActive: true}
	if err := gdb.Create(&tc).Error; err != nil {
		t.Fatalf("seed ticket class: %v", err)
	}
	reg := models.Registration{
		EventID:        eventID,
		TicketClassID:  &tc.ID,
		UserEmail:      "guest@example.com",
		ConfirmationID: "conf-1",
		Status:         models.RegistrationConfirmed,
	}
	if err := gdb.Create(&reg).Error; err != nil {
		t.Fatalf("seed registration: %v", err)
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestSweepRemovesExpiredEventWithDependents(t *testing.T) {
	store, gdb := openStore(t)
	yesterday := baseNow.Add(-24 * time.Hour)
	expired := seedEvent(t, gdb, "meetup_old", yesterday.Add(-2*time.Hour), ptr(yesterday))
	seedTicketAndRegistration(t, gdb, expired.ID)
	future := seedEvent(t, gdb, "meetup_new", baseNow.Add(24*time.Hour), ptr(baseNow.Add(26*time.Hour)))
	seedTicketAndRegistration(t, gdb, future.ID)

	res, err := (&SweepService{Store: store}).Sweep(context.Background(), baseNow)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Events != 1 || res.Registrations != 1 || res.TicketClasses != 1 {
		t.Fatalf("res=%+v", res)
	}

	var regs, tickets int64
	gdb.Model(&models.Registration{}).Where("event_id = ?", expired.ID).Count(&regs)
	gdb.Model(&models.TicketClass{}).Where("event_id = ?", expired.ID).Count(&tickets)
	if regs != 0 || tickets != 0 {
		t.Fatalf("dependents left: registrations=%d ticket_classes=%d", regs, tickets)
	}
	if _, err := store.GetEventByExternalID(context.Background(), "meetup_old"); err == nil {
		t.Fatalf("expired event still present")
	}
	gdb.Model(&models.Registration{}).Where("event_id = ?", future.ID).Count(&regs)
	if regs != 1 || mustEvent(t, store, "meetup_new").ID != future.ID {
		t.Fatalf("future event or its registration touched")
	}
}

func TestSweepSelectionRule(t *testing.T) {
	store, gdb := openStore(t)
	seedEvent(t, gdb, "ended", baseNow.Add(-3*time.Hour), ptr(baseNow.Add(-time.Second)))
	seedEvent(t, gdb, "ending_now", baseNow.Add(-3*time.Hour), ptr(baseNow))
	seedEvent(t, gdb, "running", baseNow.Add(-time.Hour), ptr(baseNow.Add(time.Hour)))
	seedEvent(t, gdb, "no_end_past", baseNow.Add(-time.Minute), nil)
	seedEvent(t, gdb, "no_end_future", baseNow.Add(time.Minute), nil)

	res, err := (&SweepService{Store: store}).Sweep(context.Background(), baseNow)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Events != 2 {
		t.Fatalf("deleted=%d want=2", res.Events)
	}
	for _, id := range []string{"ending_now", "running", "no_end_future"} {
		mustEvent(t, store, id)
	}
	if n := countEvents(t, gdb); n != 3 {
		t.Fatalf("rows=%d want=3", n)
	}
}

func TestSweepRollsBackOnFailure(t *testing.T) {
	store, gdb := openStore(t)
	expired := seedEvent(t, gdb, "meetup_old", baseNow.Add(-48*time.Hour), ptr(baseNow.Add(-46*time.Hour)))
	seedTicketAndRegistration(t, gdb, expired.ID)

	svc := &SweepService{Store: &failingStore{Store: store, failEventDelete: true}}
	res, err := svc.Sweep(context.Background(), baseNow)
	if !errors.Is(err, errInjected) {
		t.Fatalf("err=%v want=%v", err, errInjected)
	}
	if res.Events != 0 {
		t.Fatalf("res=%+v want zero", res)
	}
	var regs int64
	gdb.Model(&models.Registration{}).Count(&regs)
	if regs != 1 {
		t.Fatalf("registrations=%d want=1 after rollback", regs)
	}
}

func TestSweepNothingExpired(t *testing.T) {
	store, gdb := openStore(t)
	seedEvent(t, gdb, "future", baseNow.Add(time.Hour), nil)
	res, err := (&SweepService{Store: store}).Sweep(context.Background(), baseNow)
	if err != nil || res.Events != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}
