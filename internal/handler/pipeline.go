package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"eventsync/internal/service"
)

type PipelineHandler struct {
	Pipeline *service.PipelineService
	Sweeper  *service.SweepService
	Hub      *service.ReportHub
	Logger   *zap.Logger

	// PingInterval keeps idle stream connections alive through proxies.
	PingInterval time.Duration
	Now          func() time.Time
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	g := r.Group("/api/pipeline")
	g.POST("/run", h.run)
	g.POST("/sweep", h.sweep)
	g.GET("/sources", h.sources)
	g.GET("/stream", h.stream)
}

// @Summary Trigger one pipeline cycle
// @Description Starts a cycle in the background. Poll /api/pipeline/sources or follow /api/pipeline/stream for the outcome.
// @Tags pipeline
// @Success 202 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/pipeline/run [post]
func (h *PipelineHandler) run(c *gin.Context) {
	if h.Pipeline == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	if err := h.Pipeline.StartCycle(service.TriggerAPI); err != nil {
		if errors.Is(err, service.ErrCycleRunning) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Accepted(c, gin.H{"status": "accepted"})
}

// @Summary Sweep expired events now
// @Tags pipeline
// @Success 200 {object} apiResponse
// @Router /api/pipeline/sweep [post]
func (h *PipelineHandler) sweep(c *gin.Context) {
	if h.Sweeper == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	res, err := h.Sweeper.Sweep(c.Request.Context(), h.now())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual sweep failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, res, nil)
}

// @Summary List adapter run states
// @Tags pipeline
// @Success 200 {object} apiResponse
// @Router /api/pipeline/sources [get]
func (h *PipelineHandler) sources(c *gin.Context) {
	if h.Pipeline == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	items, err := h.Pipeline.SourceStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := map[string]any{"running": h.Pipeline.Running()}
	Ok(c, items, meta)
}

// @Summary Stream cycle reports
// @Description Upgrades to a websocket and pushes one JSON message per finished cycle.
// @Tags pipeline
// @Router /api/pipeline/stream [get]
func (h *PipelineHandler) stream(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		// Accept already wrote the handshake error
		return
	}
	defer conn.CloseNow()

	reports, cancel := h.Hub.Subscribe(8)
	defer cancel()

	// clients never send; CloseRead handles their close frames
	ctx := conn.CloseRead(c.Request.Context())

	interval := h.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "hub closed")
				return
			}
			if err := writeJSON(ctx, conn, report); err != nil {
				if h.Logger != nil {
					h.Logger.Debug("stream write failed", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func (h *PipelineHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
