package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/scoring"
)

// DefaultQuestionCount is the number of questions in an exam.
const DefaultQuestionCount = 64

// ExamSessionService handles the exam session lifecycle.
type ExamSessionService struct {
	sessions      SessionStore
	questions     QuestionStore
	answers       AnswerStore
	events        EventStore
	cache         QuestionSetCache
	questionCount int
	log           zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService. cache may be nil.
func NewExamSessionService(
	sessions SessionStore,
	questions QuestionStore,
	answers AnswerStore,
	events EventStore,
	cache QuestionSetCache,
	questionCount int,
	log zerolog.Logger,
) *ExamSessionService {
	if questionCount <= 0 {
		questionCount = DefaultQuestionCount
	}
	return &ExamSessionService{
		sessions:      sessions,
		questions:     questions,
		answers:       answers,
		events:        events,
		cache:         cache,
		questionCount: questionCount,
		log:           log.With().Str("component", "exam_session_service").Logger(),
	}
}

// FinalizeResult is the outcome of a successful finalize.
type FinalizeResult struct {
	Session   *model.ExamSession `json:"session"`
	Score     float64            `json:"score"`
	Breakdown []scoring.Result   `json:"breakdown"`
}

// StartOrResume returns the candidate's ONGOING session with its question
// set, creating the session if none exists.
func (s *ExamSessionService) StartOrResume(ctx context.Context, candidateID int) (*model.StartSessionResponse, error) {
	session, err := s.sessions.GetOngoingByCandidate(ctx, candidateID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get ongoing session: %w", err)
	}

	resumed := session != nil
	if !resumed {
		session, resumed, err = s.create(ctx, candidateID)
		if err != nil {
			return nil, err
		}
	}

	questions, err := s.questionSet(ctx, session)
	if err != nil {
		return nil, err
	}

	out := make([]model.QuestionForCandidate, len(questions))
	for i, q := range questions {
		out[i] = q.ForCandidate()
	}

	return &model.StartSessionResponse{Session: session, Questions: out, Resumed: resumed}, nil
}

// create inserts a new ONGOING session. Losing a concurrent start race is
// reported as a resume of the winner's session.
func (s *ExamSessionService) create(ctx context.Context, candidateID int) (*model.ExamSession, bool, error) {
	cutoff, err := s.questions.MaxID(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("question cutoff: %w", err)
	}

	session := &model.ExamSession{
		CandidateID:    candidateID,
		Status:         model.SessionStatusOngoing,
		QuestionCutoff: cutoff,
		QuestionCount:  s.questionCount,
	}

	if err := s.sessions.CreateOngoing(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, fetchErr := s.sessions.GetOngoingByCandidate(ctx, candidateID)
			if fetchErr != nil {
				return nil, false, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("candidate_id", candidateID).
		Int64("question_cutoff", cutoff).
		Msg("Exam session started")

	return session, false, nil
}

// questionSet returns the session's pinned questions, cache first.
func (s *ExamSessionService) questionSet(ctx context.Context, session *model.ExamSession) ([]model.Question, error) {
	cutoff, limit := session.QuestionCutoff, session.QuestionCount

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, cutoff, limit)
		if err != nil {
			s.log.Warn().Err(err).Msg("Question set cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	questions, err := s.questions.ListPinned(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	if s.cache != nil && len(questions) > 0 {
		if err := s.cache.Set(ctx, cutoff, limit, questions); err != nil {
			s.log.Warn().Err(err).Msg("Question set cache write failed")
		}
	}
	return questions, nil
}

// ongoing loads a session the candidate may still write to.
func (s *ExamSessionService) ongoing(ctx context.Context, sessionID uuid.UUID, candidateID int) (*model.ExamSession, error) {
	session, err := s.sessions.GetByIDAndCandidate(ctx, sessionID, candidateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.Ongoing() {
		return nil, ErrNotFound
	}
	return session, nil
}

// SaveAnswer autosaves a single answer while the session is ONGOING.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, sessionID uuid.UUID, candidateID int, questionID int64, answer string) error {
	session, err := s.ongoing(ctx, sessionID, candidateID)
	if err != nil {
		return err
	}

	questions, err := s.questionSet(ctx, session)
	if err != nil {
		return err
	}
	if !containsQuestion(questions, questionID) {
		return ErrNotFound
	}

	if err := s.answers.Upsert(ctx, sessionID, questionID, answer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: save answer: %v", ErrPersistence, err)
	}
	return nil
}

// Finalize scores the session and moves it to FINISHED. Every question of
// the pinned set is scored; submitted answers override autosaved ones and
// answers to questions outside the set are ignored. A session that is
// missing, foreign or already finished yields ErrNotFound.
func (s *ExamSessionService) Finalize(ctx context.Context, sessionID uuid.UUID, candidateID int, submitted map[int64]string) (*FinalizeResult, error) {
	session, err := s.ongoing(ctx, sessionID, candidateID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionSet(ctx, session)
	if err != nil {
		return nil, err
	}

	var (
		score     float64
		breakdown []scoring.Result
		ignored   int
	)
	grade := func(saved []model.CandidateAnswer) (float64, []model.CandidateAnswer) {
		merged := make(map[int64]string, len(saved)+len(submitted))
		for _, a := range saved {
			merged[a.QuestionID] = a.Answer
		}
		for qid, raw := range submitted {
			merged[qid] = raw
		}

		breakdown = make([]scoring.Result, 0, len(questions))
		answers := make([]model.CandidateAnswer, 0, len(merged))
		for _, q := range questions {
			raw, ok := merged[q.ID]
			breakdown = append(breakdown, scoring.Score(q, raw))
			if ok {
				answers = append(answers, model.CandidateAnswer{SessionID: sessionID, QuestionID: q.ID, Answer: raw})
			}
		}
		ignored = len(merged) - len(answers)
		score = scoring.Total(breakdown)
		return score, answers
	}

	finished, err := s.sessions.Finalize(ctx, sessionID, candidateID, grade)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: finalize session: %v", ErrPersistence, err)
	}
	if ignored > 0 {
		s.log.Warn().Str("session_id", sessionID.String()).Int("ignored", ignored).Msg("Answers outside the session question set ignored")
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("candidate_id", candidateID).
		Float64("score", score).
		Msg("Exam session finalized")

	return &FinalizeResult{Session: finished, Score: score, Breakdown: breakdown}, nil
}

// GetResult returns a session with its answers and proctoring log.
func (s *ExamSessionService) GetResult(ctx context.Context, sessionID uuid.UUID, candidateID int) (*model.SessionResult, error) {
	session, err := s.sessions.GetByIDAndCandidate(ctx, sessionID, candidateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s.result(ctx, session)
}

// Get loads any session for reviewers.
func (s *ExamSessionService) Get(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Review returns any session with its answers and proctoring log.
func (s *ExamSessionService) Review(ctx context.Context, sessionID uuid.UUID) (*model.SessionResult, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.result(ctx, session)
}

func (s *ExamSessionService) result(ctx context.Context, session *model.ExamSession) (*model.SessionResult, error) {
	answers, err := s.answers.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	events, err := s.events.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if answers == nil {
		answers = []model.CandidateAnswer{}
	}
	if events == nil {
		events = []model.ProctorEvent{}
	}
	return &model.SessionResult{Session: session, Answers: answers, ProctorEvents: events}, nil
}

// History lists a candidate's sessions, newest first.
func (s *ExamSessionService) History(ctx context.Context, candidateID int) ([]model.ExamSession, error) {
	sessions, err := s.sessions.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}
	return sessions, nil
}

func containsQuestion(questions []model.Question, id int64) bool {
	for _, q := range questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
