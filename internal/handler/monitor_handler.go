package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// SnapshotProvider builds the live overview of ongoing sessions.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context) (*service.MonitorSnapshot, error)
}

// EventLister reads a session's proctoring log.
type EventLister interface {
	Events(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorEvent, error)
}

// MonitorHandler serves the reviewer endpoints.
type MonitorHandler struct {
	rdb      *redis.Client
	monitor  SnapshotProvider
	events   EventLister
	sessions SessionLookup
	log      zerolog.Logger
}

// SessionLookup loads any session regardless of owner.
type SessionLookup interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error)
	Review(ctx context.Context, sessionID uuid.UUID) (*model.SessionResult, error)
}

func NewMonitorHandler(
	rdb *redis.Client,
	monitor SnapshotProvider,
	events EventLister,
	sessions SessionLookup,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		monitor:  monitor,
		events:   events,
		sessions: sessions,
		log:      log.With().Str("component", "monitor_handler").Logger(),
	}
}

// ListEvents godoc
// GET /api/v1/reviewer/sessions/:session_id/events
// Returns the session's proctoring log ordered by time.
func (h *MonitorHandler) ListEvents(c *gin.Context) {
	sessionID, ok := validator.UUIDParam(c, "session_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		failFromError(c, h.log, err)
		return
	}

	events, err := h.events.Events(c.Request.Context(), sessionID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"events": events})
}

// GetSession godoc
// GET /api/v1/reviewer/sessions/:session_id
// Returns any session with its answers and proctoring log.
func (h *MonitorHandler) GetSession(c *gin.Context) {
	sessionID, ok := validator.UUIDParam(c, "session_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.sessions.Review(c.Request.Context(), sessionID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// GetSnapshot godoc
// GET /api/v1/reviewer/monitor/snapshot
func (h *MonitorHandler) GetSnapshot(c *gin.Context) {
	snapshot, err := h.monitor.GetSnapshot(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, snapshot)
}

// MonitorSSE godoc
// GET /api/v1/reviewer/monitor
// Streams a snapshot of ongoing sessions, every alert as it happens, and a
// periodic refresh of the snapshot.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()
	setSSEHeaders(c)

	h.sendSnapshot(c, reqCtx, "snapshot")

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.GlobalMonitorChannel())
	defer pubsub.Close()

	h.log.Info().Msg("Reviewer attached to live monitor SSE")
	h.stream(c, reqCtx, pubsub.Channel(), func() { h.sendSnapshot(c, reqCtx, "refresh") })
	h.log.Info().Msg("Reviewer detached from live monitor SSE")
}

// MonitorSessionSSE godoc
// GET /api/v1/reviewer/sessions/:session_id/monitor
// Streams the alerts of a single session.
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	sessionID, ok := validator.UUIDParam(c, "session_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()
	session, err := h.sessions.Get(reqCtx, sessionID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	setSSEHeaders(c)
	c.SSEvent("message", map[string]interface{}{
		"type":    "session",
		"session": session,
	})
	c.Writer.Flush()

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.SessionMonitorChannel(sessionID.String()))
	defer pubsub.Close()

	h.stream(c, reqCtx, pubsub.Channel(), nil)
}

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
}

// stream forwards pub/sub payloads until the client goes away. refresh is
// optional.
func (h *MonitorHandler) stream(c *gin.Context, ctx context.Context, ch <-chan *redis.Message, refresh func()) {
	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	var refreshC <-chan time.Time
	if refresh != nil {
		refreshTicker := time.NewTicker(refreshInterval)
		defer refreshTicker.Stop()
		refreshC = refreshTicker.C
	}

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON; forward them untouched.
			writeSSEData(c, []byte(msg.Payload))

		case <-refreshC:
			refresh()

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func writeSSEData(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

// sendSnapshot writes one snapshot event. A failed query is logged and the
// stream carries on with pub/sub events only.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, eventType string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snapshot, err := h.monitor.GetSnapshot(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to build monitor snapshot")
		return
	}

	c.SSEvent("message", map[string]interface{}{
		"type": eventType,
		"data": snapshot,
	})
	c.Writer.Flush()
}
