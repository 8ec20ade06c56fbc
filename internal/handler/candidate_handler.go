package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// SessionManager is the exam session behaviour the candidate endpoints use.
type SessionManager interface {
	StartOrResume(ctx context.Context, candidateID int) (*model.StartSessionResponse, error)
	SaveAnswer(ctx context.Context, sessionID uuid.UUID, candidateID int, questionID int64, answer string) error
	Finalize(ctx context.Context, sessionID uuid.UUID, candidateID int, submitted map[int64]string) (*service.FinalizeResult, error)
	GetResult(ctx context.Context, sessionID uuid.UUID, candidateID int) (*model.SessionResult, error)
	History(ctx context.Context, candidateID int) ([]model.ExamSession, error)
}

// FrameRecorder runs and records proctoring checks.
type FrameRecorder interface {
	Record(ctx context.Context, sessionID uuid.UUID, candidateID int, req model.ProctorFrameRequest) (*model.ProctorResult, error)
	Events(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorEvent, error)
}

// CandidateHandler handles candidate-facing endpoints (exam taking, proctoring).
type CandidateHandler struct {
	sessions     SessionManager
	proctor      FrameRecorder
	maxBodyBytes int64
	log          zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler. maxFrameBytes bounds a
// single decoded frame; request bodies may carry two encoded frames.
func NewCandidateHandler(sessions SessionManager, proctor FrameRecorder, maxFrameBytes int, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		sessions:     sessions,
		proctor:      proctor,
		maxBodyBytes: int64(maxFrameBytes)*3 + 4096,
		log:          log.With().Str("component", "candidate_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/candidate/sessions
// Starts a new exam session or resumes the ongoing one.
func (h *CandidateHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	res, err := h.sessions.StartOrResume(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// ListSessions godoc
// GET /api/v1/candidate/sessions
func (h *CandidateHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessions.History(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// SaveAnswer godoc
// PUT /api/v1/candidate/sessions/:session_id/answers/:question_id
// Autosaves one answer. Repeating the call with the same payload is a no-op.
func (h *CandidateHandler) SaveAnswer(c *gin.Context) {
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
	questionID, ok := validator.Int64Param(c, "question_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.SaveAnswer(c.Request.Context(), sessionID, claims.UserID, questionID, string(req.Answer)); err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// FinalizeSession godoc
// POST /api/v1/candidate/sessions/:session_id/finish
// Scores the session and closes it. Only one submission can succeed.
func (h *CandidateHandler) FinalizeSession(c *gin.Context) {
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

	var req model.FinalizeSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	submitted, fields := parseAnswerKeys(req.Answers)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.sessions.Finalize(c.Request.Context(), sessionID, claims.UserID, submitted)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":   res.Session,
		"score":     res.Score,
		"breakdown": res.Breakdown,
	})
}

// GetResult godoc
// GET /api/v1/candidate/sessions/:session_id/result
func (h *CandidateHandler) GetResult(c *gin.Context) {
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

	res, err := h.sessions.GetResult(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// RecordFrame godoc
// POST /api/v1/candidate/sessions/:session_id/proctor
// Runs one proctoring check. Every accepted request appends exactly one event.
func (h *CandidateHandler) RecordFrame(c *gin.Context) {
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

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	var req model.ProctorFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, validator.TranslateErrors(err))
		return
	}

	res, err := h.proctor.Record(c.Request.Context(), sessionID, claims.UserID, req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// parseAnswerKeys converts JSON object keys into question ids.
func parseAnswerKeys(answers map[string]model.AnswerValue) (map[int64]string, map[string]string) {
	out := make(map[int64]string, len(answers))
	var fields map[string]string
	for key, value := range answers {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			if fields == nil {
				fields = make(map[string]string)
			}
			fields["answers."+key] = "question id must be a positive integer"
			continue
		}
		out[id] = string(value)
	}
	return out, fields
}
