package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctoring"
)

// notifyTimeout bounds alert fan-out so a slow broker never delays the caller.
const notifyTimeout = 2 * time.Second

// ProctorService examines frames for a session and keeps its proctoring log.
type ProctorService struct {
	sessions     SessionStore
	candidates   CandidateStore
	events       EventStore
	orchestrator *proctoring.Orchestrator
	notifier     AlertNotifier
	uploadDir    string
	log          zerolog.Logger
}

// NewProctorService creates a new ProctorService. notifier may be nil.
func NewProctorService(
	sessions SessionStore,
	candidates CandidateStore,
	events EventStore,
	orchestrator *proctoring.Orchestrator,
	notifier AlertNotifier,
	uploadDir string,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		sessions:     sessions,
		candidates:   candidates,
		events:       events,
		orchestrator: orchestrator,
		notifier:     notifier,
		uploadDir:    uploadDir,
		log:          log.With().Str("component", "proctor_service").Logger(),
	}
}

// Record examines one frame and appends exactly one event to the session's
// log. Alerts are a successful outcome; only an undecodable frame
// (ErrDecodeFailure) or a storage failure (ErrPersistence) fail the call.
func (s *ProctorService) Record(ctx context.Context, sessionID uuid.UUID, candidateID int, req model.ProctorFrameRequest) (*model.ProctorResult, error) {
	session, err := s.sessions.GetByIDAndCandidate(ctx, sessionID, candidateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotActive
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", ErrPersistence, err)
	}
	if !session.Ongoing() {
		return nil, ErrSessionNotActive
	}

	out, analyzeErr := s.orchestrator.Analyze(ctx, proctoring.Input{
		Frame:         req.Frame,
		PreviousFrame: req.PreviousFrame,
		Reference:     s.reference(ctx, candidateID),
	})

	event := &model.ProctorEvent{SessionID: sessionID, Kind: out.Kind, Details: out.Details}
	if err := s.events.Append(ctx, event); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to append proctor event")
		return nil, fmt.Errorf("%w: append event: %v", ErrPersistence, err)
	}

	if analyzeErr != nil {
		s.log.Warn().Err(analyzeErr).Str("session_id", sessionID.String()).Msg("Frame could not be examined")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, analyzeErr)
	}

	if out.Kind == model.EventKindAlert {
		s.log.Info().
			Str("session_id", sessionID.String()).
			Int("candidate_id", candidateID).
			Strs("alerts", out.Alerts).
			Msg("Proctoring alert")
		s.notify(ctx, candidateID, event, out.Alerts)
	}

	return &model.ProctorResult{
		FaceMatch: out.FaceMatch,
		Objects:   out.Objects,
		Movement:  string(out.Movement),
		Kind:      out.Kind,
		Alerts:    out.Alerts,
		Defaulted: out.Defaulted,
	}, nil
}

// Events returns a session's proctoring log ordered by timestamp.
func (s *ProctorService) Events(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorEvent, error) {
	events, err := s.events.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []model.ProctorEvent{}
	}
	return events, nil
}

// reference loads the candidate's registered face image. Any failure means
// there is no reference and the identity check is skipped.
func (s *ProctorService) reference(ctx context.Context, candidateID int) []byte {
	candidate, err := s.candidates.GetByID(ctx, candidateID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().Err(err).Int("candidate_id", candidateID).Msg("Candidate lookup failed")
		}
		return nil
	}
	if candidate.FaceImagePath == nil || *candidate.FaceImagePath == "" {
		return nil
	}

	// Clean against root so a stored path cannot escape the upload directory.
	path := filepath.Join(s.uploadDir, filepath.Clean("/"+*candidate.FaceImagePath))
	raw, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn().Err(err).Int("candidate_id", candidateID).Msg("Reference image unreadable")
		return nil
	}
	return raw
}

func (s *ProctorService) notify(ctx context.Context, candidateID int, event *model.ProctorEvent, alerts []string) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := s.notifier.Notify(ctx, model.AlertNotification{
		Type:        "alert",
		CandidateID: candidateID,
		Event:       *event,
		Alerts:      alerts,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", event.SessionID.String()).Msg("Alert notification failed")
	}
}
