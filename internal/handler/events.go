package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eventsync/internal/models"
	"eventsync/internal/repository"
)

type EventsHandler struct {
	Repo   repository.EventRepository
	Logger *zap.Logger
}

func (h *EventsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/events")
	g.GET("", h.list)
	g.GET("/:external_id", h.get)
}

type eventView struct {
	ExternalID     string          `json:"external_id"`
	Origin         models.Origin   `json:"origin"`
	Source         string          `json:"source"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	URL            string          `json:"url"`
	ImageURL       *string         `json:"image_url,omitempty"`
	VenueName      string          `json:"venue_name,omitempty"`
	VenueAddress   string          `json:"venue_address,omitempty"`
	OrganizerName  string          `json:"organizer_name,omitempty"`
	IsFree         bool            `json:"is_free"`
	OnlineEvent    bool            `json:"online_event"`
	Category       string          `json:"category"`
	SourceMetadata json.RawMessage `json:"source_metadata,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toEventView(e models.Event) eventView {
	v := eventView{
		ExternalID:    e.ExternalID,
		Origin:        e.Origin,
		Source:        e.Source,
		Title:         e.Title,
		Description:   e.Description,
		StartTime:     e.StartTime.UTC(),
		URL:           e.URL,
		ImageURL:      e.ImageURL,
		VenueName:     e.VenueName,
		VenueAddress:  e.VenueAddress,
		OrganizerName: e.OrganizerName,
		IsFree:        e.IsFree,
		OnlineEvent:   e.OnlineEvent,
		Category:      e.Category,
		UpdatedAt:     e.UpdatedAt.UTC(),
	}
	if e.EndTime != nil {
		end := e.EndTime.UTC()
		v.EndTime = &end
	}
	if len(e.SourceMetadata) > 0 {
		v.SourceMetadata = json.RawMessage(e.SourceMetadata)
	}
	return v
}

// @Summary List events
// @Tags events
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param source query string false "source adapter name"
// @Param origin query string false "scraped|user"
// @Param q query string false "title contains"
// @Param from query string false "start_time lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param order_by query string false "start_time|end_time|updated_at|title"
// @Param ascending query bool false "ascending"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/events [get]
func (h *EventsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	from, ok := timeQueryPtr(c, "from")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid from", nil)
		return
	}
	var origin *models.Origin
	if v := strings.TrimSpace(c.Query("origin")); v != "" {
		o := models.Origin(strings.ToLower(v))
		if !o.Valid() {
			Error(c, http.StatusBadRequest, "invalid origin", nil)
			return
		}
		origin = &o
	}
	asc := boolQueryPtr(c, "ascending")
	if asc == nil {
		asc = boolPtr(true)
	}
	orderBy := parseOrder(c.Query("order_by"), map[string]string{
		"start_time": "start_time",
		"end_time":   "end_time",
		"updated_at": "updated_at",
		"title":      "title",
	})
	params := repository.ListEventsParams{
		Limit:   limit,
		Offset:  offset,
		Source:  strQueryPtr(c, "source"),
		Origin:  origin,
		Title:   strQueryPtr(c, "q"),
		From:    from,
		OrderBy: orderBy,
		Asc:     asc,
	}

	items, err := h.Repo.ListEvents(c.Request.Context(), params)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list events failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]eventView, 0, len(items))
	for _, e := range items {
		out = append(out, toEventView(e))
	}
	Ok(c, out, paginationMeta(limit, offset, total))
}

// @Summary Get event by external id
// @Tags events
// @Param external_id path string true "external id, e.g. meetup_301234567"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/events/{external_id} [get]
func (h *EventsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("external_id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid external_id", nil)
		return
	}
	item, err := h.Repo.GetEventByExternalID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && item == nil) {
		Error(c, http.StatusNotFound, "event not found", nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, toEventView(*item), nil)
}

func boolPtr(v bool) *bool {
	return &v
}
