package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventsync/internal/classifier"
	"eventsync/internal/models"
	"eventsync/internal/source"
)

func TestReconcileIsIdempotent(t *testing.T) {
	store, gdb := openStore(t)
	svc := &ReconcileService{Store: store}
	batch := []source.Candidate{
		candidate("meetup_1", "Startup Pitch Day", baseNow.Add(24*time.Hour)),
		candidate("meetup_2", "Founders Networking Brunch", baseNow.Add(48*time.Hour)),
	}

	first, err := svc.Reconcile(context.Background(), batch)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Added != 2 || first.Updated != 0 {
		t.Fatalf("first=%+v", first)
	}
	before := mustEvent(t, store, "meetup_1")

	second, err := svc.Reconcile(context.Background(), batch)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Added != 0 || second.Updated != 0 || second.Unchanged != 2 {
		t.Fatalf("second=%+v want no-op", second)
	}
	after := mustEvent(t, store, "meetup_1")
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("updated_at moved on a no-op run: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if n := countEvents(t, gdb); n != 2 {
		t.Fatalf("rows=%d want=2", n)
	}
}

func TestReconcileUpdatesDisplayFieldsOnly(t *testing.T) {
	store, _ := openStore(t)
	svc := &ReconcileService{Store: store, Now: func() time.Time { return baseNow }}
	c := candidate("meetup_1", "Startup Pitch Day", baseNow.Add(24*time.Hour))
	if _, err := svc.Reconcile(context.Background(), []source.Candidate{c}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	orig := mustEvent(t, store, "meetup_1")

	c.Title = "Startup Pitch Day (venue changed)"
	c.VenueName = "IITM Research Park"
	c.IsFree = false
	res, err := svc.Reconcile(context.Background(), []source.Candidate{c})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Updated != 1 || res.Added != 0 {
		t.Fatalf("res=%+v", res)
	}
	got := mustEvent(t, store, "meetup_1")
	if got.ID != orig.ID || got.Title != c.Title || got.VenueName != "IITM Research Park" || got.IsFree {
		t.Fatalf("got=%+v", got)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) || got.Origin != models.OriginScraped {
		t.Fatalf("created_at or origin changed: %+v", got)
	}
}

func TestReconcileFirstOccurrenceWins(t *testing.T) {
	store, gdb := openStore(t)
	svc := &ReconcileService{Store: store}
	a := candidate("allevents_9", "Fintech Summit", baseNow.Add(24*time.Hour))
	b := candidate("allevents_9", "Fintech Summit (duplicate card)", baseNow.Add(24*time.Hour))
	res, err := svc.Reconcile(context.Background(), []source.Candidate{a, b})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Added != 1 || res.Duplicates != 1 {
		t.Fatalf("res=%+v", res)
	}
	if n := countEvents(t, gdb); n != 1 {
		t.Fatalf("rows=%d want=1", n)
	}
	if got := mustEvent(t, store, "allevents_9"); got.Title != "Fintech Summit" {
		t.Fatalf("title=%q want first candidate", got.Title)
	}
}

func TestReconcileLeavesUserEventsAlone(t *testing.T) {
	store, gdb := openStore(t)
	user := models.Event{
		ExternalID: "meetup_77",
		Origin:     models.OriginUser,
		Title:      "Hand-made listing",
		StartTime:  baseNow.Add(72 * time.Hour),
		IsFree:     true,
	}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := &ReconcileService{Store: store}
	res, err := svc.Reconcile(context.Background(), []source.Candidate{
		candidate("meetup_77", "Scraped Startup Mixer", baseNow.Add(24*time.Hour)),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Skipped != 1 || res.Updated != 0 || res.Added != 0 {
		t.Fatalf("res=%+v", res)
	}
	if got := mustEvent(t, store, "meetup_77"); got.Title != "Hand-made listing" {
		t.Fatalf("user event modified: %+v", got)
	}
}

func TestReconcileRollsBackWholeBatch(t *testing.T) {
	store, gdb := openStore(t)
	svc := &ReconcileService{Store: &failingStore{Store: store, insertsBeforeFailure: 1}}
	res, err := svc.Reconcile(context.Background(), []source.Candidate{
		candidate("meetup_1", "Startup Pitch Day", baseNow.Add(24*time.Hour)),
		candidate("meetup_2", "Founders Networking Brunch", baseNow.Add(48*time.Hour)),
	})
	if !errors.Is(err, errInjected) {
		t.Fatalf("err=%v want=%v", err, errInjected)
	}
	if res != (ReconcileResult{}) {
		t.Fatalf("res=%+v want zero", res)
	}
	if n := countEvents(t, gdb); n != 0 {
		t.Fatalf("rows=%d want=0 after rollback", n)
	}
}

func TestOnlyClassifiedCandidatesArePersisted(t *testing.T) {
	store, gdb := openStore(t)
	e1 := candidate("e1", "AI Summit Chennai", baseNow.Add(24*time.Hour))
	e1.Description = "machine learning networking"
	e2 := candidate("e2", "Weekend DJ Night", baseNow.Add(24*time.Hour))
	e2.Description = "party dance"

	var accepted []source.Candidate
	for _, c := range []source.Candidate{e1, e2} {
		if classifier.Classify(c.Title, c.Description) {
			accepted = append(accepted, c)
		}
	}
	if len(accepted) != 1 || accepted[0].ExternalID != "e1" {
		t.Fatalf("accepted=%v", accepted)
	}
	res, err := (&ReconcileService{Store: store}).Reconcile(context.Background(), accepted)
	if err != nil || res.Added != 1 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if n := countEvents(t, gdb); n != 1 {
		t.Fatalf("rows=%d want=1", n)
	}
}

func TestDisplayChangedComparesJSONSemantically(t *testing.T) {
	a := eventFromCandidate(candidate("x", "Startup Pitch Day", baseNow))
	b := a
	b.SourceMetadata = []byte(`{"fallback_image": false, "source": "meetup"}`)
	if displayChanged(a, b) {
		t.Fatalf("reformatted metadata should not count as a change")
	}
	b.SourceMetadata = []byte(`{"source":"allevents"}`)
	if !displayChanged(a, b) {
		t.Fatalf("metadata change not detected")
	}
}
