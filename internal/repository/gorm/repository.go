package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventsync/internal/models"
	"eventsync/internal/repository"
)

// lookups and deletes are chunked to stay under driver bind-parameter limits
const chunkSize = 500

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *Store) FindEventsByExternalIDsTx(ctx context.Context, tx *gorm.DB, externalIDs []string) ([]models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids := cleanStrings(externalIDs)
	out := make([]models.Event, 0, len(ids))
	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		var batch []models.Event
		if err := s.conn(ctx, tx).Where("external_id IN ?", ids[start:end]).Find(&batch).Error; err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *Store) InsertEventTx(ctx context.Context, tx *gorm.DB, item *models.Event) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if err := s.conn(ctx, tx).Create(item).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert %s: %w", item.ExternalID, repository.ErrDuplicateExternalID)
		}
		return fmt.Errorf("insert %s: %w", item.ExternalID, err)
	}
	return nil
}

func (s *Store) UpdateEventDisplayTx(ctx context.Context, tx *gorm.DB, item *models.Event) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == 0 {
		return fmt.Errorf("update %s: missing id", item.ExternalID)
	}
	res := s.conn(ctx, tx).
		Model(&models.Event{ID: item.ID}).
		Where("origin = ?", models.OriginScraped).
		Select(repository.DisplayColumns).
		Updates(item)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", item.ExternalID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s: %w", item.ExternalID, repository.ErrNotFound)
	}
	return nil
}

func (s *Store) ListExpiredEventIDsTx(ctx context.Context, tx *gorm.DB, now time.Time) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []uint64
	err := s.conn(ctx, tx).
		Model(&models.Event{}).
		Where("(end_time IS NOT NULL AND end_time < ?) OR (end_time IS NULL AND start_time < ?)", now, now).
		Order("id asc").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) DeleteRegistrationsByEventIDsTx(ctx context.Context, tx *gorm.DB, eventIDs []uint64) (int64, error) {
	return s.deleteByEventIDs(ctx, tx, &models.Registration{}, "event_id", eventIDs)
}

func (s *Store) DeleteTicketClassesByEventIDsTx(ctx context.Context, tx *gorm.DB, eventIDs []uint64) (int64, error) {
	return s.deleteByEventIDs(ctx, tx, &models.TicketClass{}, "event_id", eventIDs)
}

func (s *Store) DeleteEventsByIDsTx(ctx context.Context, tx *gorm.DB, eventIDs []uint64) (int64, error) {
	return s.deleteByEventIDs(ctx, tx, &models.Event{}, "id", eventIDs)
}

func (s *Store) deleteByEventIDs(ctx context.Context, tx *gorm.DB, model any, column string, ids []uint64) (int64, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return 0, nil
	}
	var total int64
	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		res := s.conn(ctx, tx).Where(column+" IN ?", ids[start:end]).Delete(model)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (s *Store) GetEventByExternalID(ctx context.Context, externalID string) (*models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Event
	err := s.db.WithContext(ctx).Where("external_id = ?", strings.TrimSpace(externalID)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListEvents(ctx context.Context, params repository.ListEventsParams) ([]models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.eventsQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "start_time")
	query = query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset))
	var items []models.Event
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.eventsQuery(ctx, params).Count(&total).Error
	return total, err
}

func (s *Store) eventsQuery(ctx context.Context, params repository.ListEventsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Event{})
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.Origin != nil && params.Origin.Valid() {
		query = query.Where("origin = ?", *params.Origin)
	}
	if params.Title != nil && strings.TrimSpace(*params.Title) != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(*params.Title))+"%")
	}
	if params.From != nil {
		query = query.Where("start_time >= ?", *params.From)
	}
	return query
}

func (s *Store) SaveSourceState(ctx context.Context, state *models.SourceState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	columns := []string{
		"last_run_id",
		"last_attempt_at",
		"last_error",
		"last_candidates",
		"last_duration",
		"stats_json",
	}
	// a failed attempt keeps the previous success time
	if state.LastSuccessAt != nil {
		columns = append(columns, "last_success_at")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(state).Error
}

func (s *Store) ListSourceStates(ctx context.Context) ([]models.SourceState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SourceState
	err := s.db.WithContext(ctx).Order("source asc").Find(&items).Error
	return items, err
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", strings.TrimSpace(key)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SystemSetting
	err := s.db.WithContext(ctx).Order("key asc").Find(&items).Error
	return items, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	switch column {
	case "start_time", "end_time", "created_at", "updated_at", "title", "id":
	default:
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
