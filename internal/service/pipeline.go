package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"eventsync/internal/metrics"
	"eventsync/internal/models"
	"eventsync/internal/repository"
	"eventsync/internal/source"
)

const (
	TriggerCron = "cron"
	TriggerAPI  = "api"
	TriggerCLI  = "cli"
)

var ErrCycleRunning = errors.New("a pipeline cycle is already running")

// ReportPublisher ships finished cycle reports to an external consumer.
type ReportPublisher interface {
	Publish(ctx context.Context, key string, value any) error
}

type PipelineService struct {
	Adapters   []source.Adapter
	Reconciler *ReconcileService
	Sweeper    *SweepService
	States     repository.SourceStateRepository
	Settings   *SystemSettingsService
	Metrics    *metrics.Pipeline
	Publisher  ReportPublisher
	Hub        *ReportHub
	Tracer     trace.Tracer
	Logger     *zap.Logger

	AdapterTimeout time.Duration
	CycleTimeout   time.Duration
	Now            func() time.Time
	// BaseCtx parents cycles started with StartCycle. Cancel it at shutdown.
	BaseCtx context.Context

	running atomic.Bool
	wg      sync.WaitGroup
}

type SourceReport struct {
	Source     string       `json:"source"`
	Enabled    bool         `json:"enabled"`
	Candidates int          `json:"candidates"`
	Stats      source.Stats `json:"stats"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

type CycleReport struct {
	RunID      string         `json:"run_id"`
	Trigger    string         `json:"trigger"`
	Added      int            `json:"added"`
	Updated    int            `json:"updated"`
	Deleted    int            `json:"deleted"`
	Unchanged  int            `json:"unchanged"`
	Skipped    int            `json:"skipped"`
	Duplicates int            `json:"duplicates"`
	Sources    []SourceReport `json:"sources"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
}

// RunCycle fetches every enabled source concurrently, reconciles what
// survived and sweeps expired events. It never fails: problems are logged and
// show up as zero counts and a non-empty Error in the report.
func (s *PipelineService) RunCycle(ctx context.Context, trigger string) CycleReport {
	if !s.running.CompareAndSwap(false, true) {
		s.logger().Warn("cycle skipped, another one is running", zap.String("trigger", trigger))
		return CycleReport{Trigger: trigger, StartedAt: s.now(), Error: ErrCycleRunning.Error()}
	}
	defer s.running.Store(false)
	return s.runCycle(ctx, trigger)
}

// StartCycle runs a cycle in the background and returns at once. It refuses
// to start while another cycle is running.
func (s *PipelineService) StartCycle(trigger string) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runCycle(s.baseCtx(), trigger)
	}()
	return nil
}

func (s *PipelineService) Running() bool {
	return s.running.Load()
}

// Wait blocks until background cycles started with StartCycle are done.
func (s *PipelineService) Wait() {
	s.wg.Wait()
}

func (s *PipelineService) runCycle(ctx context.Context, trigger string) (report CycleReport) {
	started := s.now()
	report = CycleReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
	}
	log := s.logger().With(zap.String("run_id", report.RunID), zap.String("trigger", trigger))

	if s.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CycleTimeout)
		defer cancel()
	}
	ctx, span := s.tracer().Start(ctx, "pipeline.run_cycle",
		trace.WithAttributes(
			attribute.String("run_id", report.RunID),
			attribute.String("trigger", trigger),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error("cycle panicked", zap.Any("panic", r))
			report.Added, report.Updated, report.Deleted = 0, 0, 0
			report.Error = fmt.Sprintf("panic: %v", r)
		}
		report.DurationMS = time.Since(started).Milliseconds()
		s.finish(ctx, log, span, report)
	}()

	results := s.fetchAll(ctx, report.RunID, log)
	var candidates []source.Candidate
	for _, r := range results {
		report.Sources = append(report.Sources, r.report)
		if r.result.OK() {
			candidates = append(candidates, r.result.Batch.Candidates...)
		}
	}

	if err := ctx.Err(); err != nil {
		// cancelled mid-fetch: whatever came back is partial
		report.Error = fmt.Sprintf("cycle cancelled: %v", err)
		return report
	}

	if s.Reconciler != nil {
		res, err := s.Reconciler.Reconcile(ctx, candidates)
		if err != nil {
			report.Error = fmt.Sprintf("reconcile: %v", err)
		}
		report.Added = res.Added
		report.Updated = res.Updated
		report.Unchanged = res.Unchanged
		report.Skipped = res.Skipped
		report.Duplicates = res.Duplicates
	}

	if s.Sweeper != nil {
		res, err := s.Sweeper.Sweep(ctx, s.now())
		if err != nil && report.Error == "" {
			report.Error = fmt.Sprintf("sweep: %v", err)
		}
		report.Deleted = int(res.Events)
	}
	return report
}

type fetchOutcome struct {
	result source.Result
	report SourceReport
}

// fetchAll is the join barrier: every enabled adapter runs in its own
// goroutine under its own deadline and the call returns once all of them
// have returned or timed out.
func (s *PipelineService) fetchAll(ctx context.Context, runID string, log *zap.Logger) []fetchOutcome {
	out := make([]fetchOutcome, len(s.Adapters))
	var wg sync.WaitGroup
	for i, a := range s.Adapters {
		name := a.Name()
		if !s.Settings.IsEnabled(ctx, FeatureSourceKey(name), true) {
			log.Info("adapter disabled by switch", zap.String("source", name))
			out[i] = fetchOutcome{report: SourceReport{Source: name}}
			continue
		}
		wg.Add(1)
		go func(i int, a source.Adapter) {
			defer wg.Done()
			res := s.fetchOne(ctx, a, log)
			out[i] = fetchOutcome{result: res, report: sourceReport(res)}
		}(i, a)
	}
	wg.Wait()

	for _, o := range out {
		if !o.report.Enabled {
			continue
		}
		s.saveState(ctx, runID, o, log)
		s.Metrics.ObserveAdapter(o.report.Source, metrics.AdapterStats{
			Accepted:  o.report.Stats.Accepted,
			Rejected:  o.report.Stats.Rejected,
			NoID:      o.report.Stats.NoID,
			NoDate:    o.report.Stats.NoDate,
			Invalid:   o.report.Stats.Invalid,
			Duplicate: o.report.Stats.Duplicate,
		}, !o.result.OK(), o.result.Duration)
	}
	return out
}

// fetchOne gives the adapter its deadline. An adapter that ignores the
// deadline is abandoned; its goroutine can still finish into the buffered
// channel without leaking.
func (s *PipelineService) fetchOne(ctx context.Context, a source.Adapter, log *zap.Logger) source.Result {
	name := a.Name()
	timeout := s.AdapterTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	actx, span := s.tracer().Start(actx, "adapter.fetch", trace.WithAttributes(attribute.String("source", name)))
	defer span.End()

	started := time.Now()
	done := make(chan source.Result, 1)
	go func() {
		done <- source.SafeFetch(actx, a, log)
	}()

	var res source.Result
	select {
	case res = <-done:
	case <-actx.Done():
		res = source.Result{
			Source:   name,
			Err:      fmt.Errorf("adapter %s: %w", name, actx.Err()),
			Started:  started,
			Duration: time.Since(started),
		}
		log.Warn("adapter abandoned after deadline", zap.String("source", name), zap.Duration("timeout", timeout))
	}
	span.SetAttributes(attribute.Int("candidates", len(res.Batch.Candidates)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func sourceReport(res source.Result) SourceReport {
	r := SourceReport{
		Source:     res.Source,
		Enabled:    true,
		Candidates: len(res.Batch.Candidates),
		Stats:      res.Batch.Stats,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

func (s *PipelineService) saveState(ctx context.Context, runID string, o fetchOutcome, log *zap.Logger) {
	if s.States == nil {
		return
	}
	attempt := o.result.Started.UTC()
	if attempt.IsZero() {
		attempt = s.now()
	}
	state := &models.SourceState{
		Source:         o.report.Source,
		LastRunID:      runID,
		LastAttemptAt:  &attempt,
		LastError:      strPtr(o.report.Error),
		LastCandidates: o.report.Candidates,
		LastDuration:   o.report.DurationMS,
		StatsJSON:      mustJSON(o.report.Stats),
	}
	if o.result.OK() {
		state.LastSuccessAt = &attempt
	}
	// state is bookkeeping; a failed write must not fail the cycle
	if err := s.States.SaveSourceState(context.WithoutCancel(ctx), state); err != nil {
		log.Warn("save source state failed", zap.String("source", state.Source), zap.Error(err))
	}
}

func (s *PipelineService) finish(ctx context.Context, log *zap.Logger, span trace.Span, report CycleReport) {
	ok := report.Error == ""
	span.SetAttributes(
		attribute.Int("added", report.Added),
		attribute.Int("updated", report.Updated),
		attribute.Int("deleted", report.Deleted),
	)
	if !ok {
		span.SetStatus(codes.Error, report.Error)
	}
	s.Metrics.ObserveCycle(report.Added, report.Updated, report.Deleted, ok, time.Duration(report.DurationMS)*time.Millisecond, s.now())

	perSource := make(map[string]int, len(report.Sources))
	for _, src := range report.Sources {
		perSource[src.Source] = src.Candidates
	}
	fields := []zap.Field{
		zap.Int("added", report.Added),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Any("candidates", perSource),
		zap.Int64("duration_ms", report.DurationMS),
	}
	if ok {
		log.Info("cycle finished", fields...)
	} else {
		log.Warn("cycle finished with errors", append(fields, zap.String("error", report.Error))...)
	}

	s.Hub.Publish(report)
	if s.Publisher != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Publisher.Publish(pctx, report.RunID, report); err != nil {
			log.Warn("publish cycle report failed", zap.Error(err))
		}
	}
}

// SourceStates lists the last outcome of each adapter for operators.
func (s *PipelineService) SourceStates(ctx context.Context) ([]SourceStatus, error) {
	if s.States == nil {
		return nil, nil
	}
	states, err := s.States.ListSourceStates(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]models.SourceState, len(states))
	for _, st := range states {
		byName[st.Source] = st
	}
	out := make([]SourceStatus, 0, len(s.Adapters))
	for _, a := range s.Adapters {
		name := a.Name()
		st := SourceStatus{
			Source:  name,
			Enabled: s.Settings.IsEnabled(ctx, FeatureSourceKey(name), true),
		}
		if row, ok := byName[name]; ok {
			st.LastRunID = row.LastRunID
			st.LastAttemptAt = row.LastAttemptAt
			st.LastSuccessAt = row.LastSuccessAt
			st.LastError = row.LastError
			st.LastCandidates = row.LastCandidates
			st.LastDurationMS = row.LastDuration
			stats, err := decodeStats(row.StatsJSON)
			if err != nil {
				s.logger().Debug("corrupt source stats ignored", zap.String("source", name), zap.Error(err))
			}
			st.Stats = stats
		}
		out = append(out, st)
	}
	return out, nil
}

type SourceStatus struct {
	Source         string       `json:"source"`
	Enabled        bool         `json:"enabled"`
	LastRunID      string       `json:"last_run_id,omitempty"`
	LastAttemptAt  *time.Time   `json:"last_attempt_at,omitempty"`
	LastSuccessAt  *time.Time   `json:"last_success_at,omitempty"`
	LastError      *string      `json:"last_error,omitempty"`
	LastCandidates int          `json:"last_candidates"`
	LastDurationMS int64        `json:"last_duration_ms"`
	Stats          source.Stats `json:"stats"`
}

func decodeStats(raw datatypes.JSON) (source.Stats, error) {
	var st source.Stats
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return source.Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	return st, nil
}

func (s *PipelineService) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer("eventsync/pipeline")
}

func (s *PipelineService) baseCtx() context.Context {
	if s.BaseCtx != nil {
		return s.BaseCtx
	}
	return context.Background()
}

func (s *PipelineService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PipelineService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
