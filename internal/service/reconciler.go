package service

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"eventsync/internal/models"
	"eventsync/internal/repository"
	"eventsync/internal/source"
)

const defaultCategory = "Business"

type ReconcileService struct {
	Store  repository.EventRepository
	Logger *zap.Logger
	Now    func() time.Time
}

type ReconcileResult struct {
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// Reconcile merges candidates into the events table in one transaction.
// Any failure rolls the whole batch back and the result is zero.
func (s *ReconcileService) Reconcile(ctx context.Context, candidates []source.Candidate) (ReconcileResult, error) {
	log := s.logger()
	unique, dups := s.dedupe(candidates)
	if len(unique) == 0 {
		return ReconcileResult{Duplicates: dups}, nil
	}
	ids := make([]string, 0, len(unique))
	for _, c := range unique {
		ids = append(ids, c.ExternalID)
	}
	now := s.now()

	var res ReconcileResult
	err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
		res = ReconcileResult{Duplicates: dups}
		existing, err := s.Store.FindEventsByExternalIDsTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		byExternalID := make(map[string]models.Event, len(existing))
		for _, e := range existing {
			byExternalID[e.ExternalID] = e
		}

		for _, c := range unique {
			if err := ctx.Err(); err != nil {
				return err
			}
			next := eventFromCandidate(c)
			current, found := byExternalID[c.ExternalID]
			if !found {
				if err := s.Store.InsertEventTx(ctx, tx, &next); err != nil {
					return err
				}
				res.Added++
				continue
			}
			if current.Origin != models.OriginScraped {
				log.Warn("candidate collides with a user event, skipped",
					zap.String("external_id", c.ExternalID),
					zap.String("origin", string(current.Origin)),
				)
				res.Skipped++
				continue
			}
			if !displayChanged(current, next) {
				res.Unchanged++
				continue
			}
			next.ID = current.ID
			next.UpdatedAt = now
			if err := s.Store.UpdateEventDisplayTx(ctx, tx, &next); err != nil {
				return err
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		log.Error("reconcile rolled back", zap.Int("candidates", len(unique)), zap.Error(err))
		return ReconcileResult{}, err
	}
	log.Info("reconcile committed",
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped", res.Skipped),
		zap.Int("duplicates", res.Duplicates),
	)
	return res, nil
}

// dedupe keeps the first candidate per external id.
func (s *ReconcileService) dedupe(candidates []source.Candidate) ([]source.Candidate, int) {
	seen := make(map[string]int, len(candidates))
	out := make([]source.Candidate, 0, len(candidates))
	dups := 0
	for _, c := range candidates {
		id := strings.TrimSpace(c.ExternalID)
		if id == "" {
			continue
		}
		if first, ok := seen[id]; ok {
			dups++
			s.logger().Warn("duplicate external_id in batch, keeping first",
				zap.String("external_id", id),
				zap.String("kept_source", out[first].Source),
				zap.String("dropped_source", c.Source),
			)
			continue
		}
		c.ExternalID = id
		seen[id] = len(out)
		out = append(out, c)
	}
	return out, dups
}

func eventFromCandidate(c source.Candidate) models.Event {
	category := strings.TrimSpace(c.Category)
	if category == "" {
		category = defaultCategory
	}
	e := models.Event{
		ExternalID:     c.ExternalID,
		Origin:         models.OriginScraped,
		Source:         c.Source,
		Title:          c.Title,
		Description:    c.Description,
		StartTime:      c.StartTime.UTC(),
		URL:            c.URL,
		VenueName:      c.VenueName,
		VenueAddress:   c.VenueAddress,
		OrganizerName:  c.OrganizerName,
		IsFree:         c.IsFree,
		OnlineEvent:    c.OnlineEvent,
		Category:       category,
		SourceMetadata: metadataJSON(c.Metadata),
	}
	if c.EndTime != nil {
		end := c.EndTime.UTC()
		e.EndTime = &end
	}
	if c.ImageURL != nil && *c.ImageURL != "" {
		img := *c.ImageURL
		e.ImageURL = &img
	}
	return e
}

// displayChanged compares the columns reconciliation owns.
func displayChanged(cur, next models.Event) bool {
	switch {
	case cur.Title != next.Title,
		cur.Description != next.Description,
		!cur.StartTime.Equal(next.StartTime),
		!equalTimePtr(cur.EndTime, next.EndTime),
		cur.URL != next.URL,
		!equalStringPtr(cur.ImageURL, next.ImageURL),
		cur.VenueName != next.VenueName,
		cur.VenueAddress != next.VenueAddress,
		cur.OrganizerName != next.OrganizerName,
		cur.IsFree != next.IsFree,
		cur.OnlineEvent != next.OnlineEvent,
		cur.Category != next.Category,
		cur.Source != next.Source:
		return true
	}
	return !equalJSON(cur.SourceMetadata, next.SourceMetadata)
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// equalJSON compares documents, not bytes; postgres jsonb reformats them.
func equalJSON(a, b datatypes.JSON) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return string(a) == string(b)
	}
	return reflect.DeepEqual(av, bv)
}

func metadataJSON(meta map[string]any) datatypes.JSON {
	if len(meta) == 0 {
		return nil
	}
	return mustJSON(meta)
}

func (s *ReconcileService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ReconcileService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
