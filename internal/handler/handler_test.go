package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"nhooyr.io/websocket"

	"eventsync/internal/config"
	"eventsync/internal/db"
	"eventsync/internal/models"
	gormrepository "eventsync/internal/repository/gorm"
	"eventsync/internal/service"
	"eventsync/internal/source"
)

var baseNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type decoded struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func openDB(t *testing.T) (*db.DB, *gormrepository.Store) {
	t.Helper()
	d, err := db.Open(config.DBConfig{Driver: db.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(d) })
	if err := db.AutoMigrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d, gormrepository.New(d.Gorm)
}

func seed(t *testing.T, gdb *gorm.DB, externalID, src string, origin models.Origin, start time.Time) {
	t.Helper()
	e := models.Event{
		ExternalID: externalID,
		Origin:     origin,
		Source:     src,
		Title:      "Startup Meetup " + externalID,
		StartTime:  start,
		URL:        "https://example.com/" + externalID,
		Category:   "Startup",
	}
	if err := gdb.Create(&e).Error; err != nil {
		t.Fatalf("seed %s: %v", externalID, err)
	}
}

func do(t *testing.T, engine http.Handler, method, path string, body []byte) (int, decoded) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	var out decoded
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, out
}

func TestListEventsFiltersAndPaginates(t *testing.T) {
	d, store := openDB(t)
	seed(t, d.Gorm, "meetup_1", "meetup", models.OriginScraped, baseNow.Add(48*time.Hour))
	seed(t, d.Gorm, "meetup_2", "meetup", models.OriginScraped, baseNow.Add(24*time.Hour))
	seed(t, d.Gorm, "allevents_1", "allevents", models.OriginScraped, baseNow.Add(72*time.Hour))
	seed(t, d.Gorm, "user_1", "", models.OriginUser, baseNow.Add(96*time.Hour))

	engine := NewRouter(nil, "", &EventsHandler{Repo: store})

	status, res := do(t, engine, http.MethodGet, "/api/events?source=meetup&limit=1", nil)
	if status != http.StatusOK {
		t.Fatalf("status=%d msg=%s", status, res.Message)
	}
	var items []eventView
	if err := json.Unmarshal(res.Data, &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 1 || items[0].ExternalID != "meetup_2" {
		t.Fatalf("items=%+v, want meetup_2 first by start_time", items)
	}
	if res.Meta["total"] != float64(2) || res.Meta["has_next"] != true {
		t.Fatalf("meta=%v", res.Meta)
	}

	_, res = do(t, engine, http.MethodGet, "/api/events?origin=user", nil)
	items = nil
	_ = json.Unmarshal(res.Data, &items)
	if len(items) != 1 || items[0].Origin != models.OriginUser {
		t.Fatalf("origin filter items=%+v", items)
	}

	status, _ = do(t, engine, http.MethodGet, "/api/events?origin=robot", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad origin status=%d", status)
	}
	status, _ = do(t, engine, http.MethodGet, "/api/events?from=yesterday", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("bad from status=%d", status)
	}
}

func TestGetEvent(t *testing.T) {
	d, store := openDB(t)
	seed(t, d.Gorm, "meetup_1", "meetup", models.OriginScraped, baseNow)
	engine := NewRouter(nil, "", &EventsHandler{Repo: store})

	status, res := do(t, engine, http.MethodGet, "/api/events/meetup_1", nil)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	var v eventView
	if err := json.Unmarshal(res.Data, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.ExternalID != "meetup_1" || !v.StartTime.Equal(baseNow) {
		t.Fatalf("view=%+v", v)
	}

	status, _ = do(t, engine, http.MethodGet, "/api/events/meetup_404", nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing status=%d", status)
	}
}

func TestSettingsPut(t *testing.T) {
	_, store := openDB(t)
	settings := &service.SystemSettingsService{Repo: store}
	if err := settings.EnsureDefaultSwitches(context.Background()); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	engine := NewRouter(nil, "", &SettingsHandler{Settings: settings})

	key := service.FeatureSourceKey(source.SourceMeetup)
	status, _ := do(t, engine, http.MethodPut, "/api/settings/"+key, []byte(`{"enabled":false}`))
	if status != http.StatusOK {
		t.Fatalf("put status=%d", status)
	}
	if settings.IsEnabled(context.Background(), key, true) {
		t.Fatalf("%s still enabled", key)
	}

	status, _ = do(t, engine, http.MethodPut, "/api/settings/feature.source.myspace", []byte(`{"enabled":true}`))
	if status != http.StatusBadRequest {
		t.Fatalf("unknown key status=%d", status)
	}
	status, _ = do(t, engine, http.MethodPut, "/api/settings/"+key, []byte(`{}`))
	if status != http.StatusBadRequest {
		t.Fatalf("missing enabled status=%d", status)
	}

	status, res := do(t, engine, http.MethodGet, "/api/settings", nil)
	if status != http.StatusOK || res.Meta["total"] != float64(len(service.DefaultFeatureSwitches())) {
		t.Fatalf("list status=%d meta=%v", status, res.Meta)
	}
}

type blockingAdapter struct {
	entered chan struct{}
	release chan struct{}
}

func (a blockingAdapter) Name() string { return source.SourceMeetup }

func (a blockingAdapter) Fetch(ctx context.Context) (source.Batch, error) {
	close(a.entered)
	<-a.release
	return source.Batch{}, nil
}

func newPipelineHandler(t *testing.T, adapters ...source.Adapter) (*PipelineHandler, *gorm.DB) {
	t.Helper()
	d, store := openDB(t)
	hub := service.NewReportHub()
	sweeper := &service.SweepService{Store: store}
	p := &service.PipelineService{
		Adapters:       adapters,
		Reconciler:     &service.ReconcileService{Store: store},
		Sweeper:        sweeper,
		States:         store,
		Settings:       &service.SystemSettingsService{Repo: store},
		Hub:            hub,
		AdapterTimeout: 5 * time.Second,
		Now:            func() time.Time { return baseNow },
	}
	t.Cleanup(p.Wait)
	return &PipelineHandler{
		Pipeline: p,
		Sweeper:  sweeper,
		Hub:      hub,
		Now:      func() time.Time { return baseNow },
	}, d.Gorm
}

func TestPipelineRunAcceptedThenConflict(t *testing.T) {
	a := blockingAdapter{entered: make(chan struct{}), release: make(chan struct{})}
	h, _ := newPipelineHandler(t, a)
	engine := NewRouter(nil, "", h)

	status, res := do(t, engine, http.MethodPost, "/api/pipeline/run", nil)
	if status != http.StatusAccepted || !strings.Contains(string(res.Data), `"accepted"`) {
		t.Fatalf("first run status=%d data=%s", status, res.Data)
	}
	<-a.entered
	status, _ = do(t, engine, http.MethodPost, "/api/pipeline/run", nil)
	if status != http.StatusConflict {
		t.Fatalf("overlapping run status=%d", status)
	}
	close(a.release)
	h.Pipeline.Wait()

	status, res = do(t, engine, http.MethodGet, "/api/pipeline/sources", nil)
	if status != http.StatusOK || res.Meta["running"] != false {
		t.Fatalf("sources status=%d meta=%v", status, res.Meta)
	}
	var states []service.SourceStatus
	_ = json.Unmarshal(res.Data, &states)
	if len(states) != 1 || states[0].LastSuccessAt == nil {
		t.Fatalf("states=%+v", states)
	}
}

func TestPipelineSweep(t *testing.T) {
	h, gdb := newPipelineHandler(t)
	seed(t, gdb, "meetup_old", "meetup", models.OriginScraped, baseNow.Add(-48*time.Hour))
	seed(t, gdb, "meetup_new", "meetup", models.OriginScraped, baseNow.Add(48*time.Hour))
	engine := NewRouter(nil, "", h)

	status, res := do(t, engine, http.MethodPost, "/api/pipeline/sweep", nil)
	if status != http.StatusOK {
		t.Fatalf("status=%d msg=%s", status, res.Message)
	}
	var out service.SweepResult
	if err := json.Unmarshal(res.Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Events != 1 {
		t.Fatalf("deleted=%d want=1", out.Events)
	}
}

func TestPipelineStreamPushesReports(t *testing.T) {
	h, _ := newPipelineHandler(t)
	srv := httptest.NewServer(NewRouter(nil, "", h))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/pipeline/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for h.Hub.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("stream never subscribed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	h.Hub.Publish(service.CycleReport{RunID: "run-1", Trigger: service.TriggerAPI, Added: 3})

	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got service.CycleReport
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "run-1" || got.Added != 3 {
		t.Fatalf("report=%+v", got)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func TestReadyz(t *testing.T) {
	d, _ := openDB(t)
	engine := NewRouter(nil, "", &HealthHandler{DB: d})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", w.Code, w.Body.String())
	}

	engine = NewRouter(nil, "", &HealthHandler{})
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db status=%d", w.Code)
	}
}

func TestMetricsMounted(t *testing.T) {
	called := false
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	engine := NewRouter(metrics, "/metrics")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !called || w.Code != http.StatusOK {
		t.Fatalf("metrics called=%v status=%d", called, w.Code)
	}
}
