package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// frameTimeout bounds one check: every provider deadline plus persistence.
const frameTimeout = 15 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Limiter decides whether a client may submit another frame.
type Limiter interface {
	Allow(key string) bool
}

// WSHandler streams proctoring checks over a WebSocket.
type WSHandler struct {
	proctor      FrameRecorder
	limiter      Limiter
	maxReadBytes int64
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. limiter may be nil.
func NewWSHandler(proctor FrameRecorder, limiter Limiter, maxFrameBytes int, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctor:      proctor,
		limiter:      limiter,
		maxReadBytes: int64(maxFrameBytes)*3 + 4096,
		log:          log.With().Str("component", "ws_handler").Logger(),
		upgrader:     buildUpgrader(allowedOrigins),
	}
}

// ProctorStream godoc
// WS /ws/v1/candidate/sessions/:session_id/proctor
// Each "frame" message is examined and answered with a "result" event. When a
// message omits the previous frame, the last frame of the connection is used.
func (h *WSHandler) ProctorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := validator.UUIDParam(c, "session_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxReadBytes)

	candidateID := claims.UserID
	limitKey := string(claims.TokenType) + ":" + strconv.Itoa(candidateID)

	wsLog := h.log.With().
		Int("candidate_id", candidateID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	var lastFrame string
	for {
		var msg ws.FrameRequest
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

		case ws.ActionFrame:
			if h.limiter != nil && !h.limiter.Allow(limitKey) {
				ws.WriteError(conn, string(response.ErrRateLimitExceeded), response.GetMessage(response.ErrRateLimitExceeded))
				continue
			}

			req := model.ProctorFrameRequest{Frame: msg.Frame, PreviousFrame: msg.PreviousFrame}
			if req.PreviousFrame == "" {
				req.PreviousFrame = lastFrame
			}

			ctx, cancel := context.WithTimeout(c.Request.Context(), frameTimeout)
			res, err := h.proctor.Record(ctx, sessionID, candidateID, req)
			cancel()

			if err != nil {
				status, code := errorCode(err)
				if status == http.StatusInternalServerError {
					wsLog.Error().Err(err).Msg("Proctor check failed")
				}
				ws.WriteError(conn, string(code), response.GetMessage(code))
				if status == http.StatusConflict {
					return
				}
				continue
			}
			if msg.Frame != "" {
				lastFrame = msg.Frame
			}
			ws.WriteTyped(conn, ws.ResultResponse{Event: ws.EventResult, Result: res})

		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}
