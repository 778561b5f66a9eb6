package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"eventsync/internal/metrics"
	"eventsync/internal/repository"
)

type SweepService struct {
	Store   repository.EventRepository
	Metrics *metrics.Pipeline
	Logger  *zap.Logger
}

type SweepResult struct {
	Events        int64     `json:"deleted"`
	TicketClasses int64     `json:"ticket_classes"`
	Registrations int64     `json:"registrations"`
	At            time.Time `json:"at"`
}

// Sweep deletes events that are over at now, together with their
// registrations and ticket classes, children first, in one transaction.
func (s *SweepService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	log := s.logger()
	now = now.UTC()
	var res SweepResult
	err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
		res = SweepResult{At: now}
		ids, err := s.Store.ListExpiredEventIDsTx(ctx, tx, now)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if res.Registrations, err = s.Store.DeleteRegistrationsByEventIDsTx(ctx, tx, ids); err != nil {
			return err
		}
		if res.TicketClasses, err = s.Store.DeleteTicketClassesByEventIDsTx(ctx, tx, ids); err != nil {
			return err
		}
		res.Events, err = s.Store.DeleteEventsByIDsTx(ctx, tx, ids)
		return err
	})
	if err != nil {
		log.Error("sweep rolled back", zap.Time("now", now), zap.Error(err))
		return SweepResult{At: now}, err
	}
	s.Metrics.ObserveSweep(res.Events, res.TicketClasses, res.Registrations)
	log.Info("sweep committed",
		zap.Int64("events", res.Events),
		zap.Int64("ticket_classes", res.TicketClasses),
		zap.Int64("registrations", res.Registrations),
	)
	return res, nil
}

func (s *SweepService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
