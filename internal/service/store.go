package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// The interfaces below are satisfied by the repository package. Lookups
// report a missing row with pgx.ErrNoRows.

// SessionStore persists exam sessions.
type SessionStore interface {
	GetOngoingByCandidate(ctx context.Context, candidateID int) (*model.ExamSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByIDAndCandidate(ctx context.Context, id uuid.UUID, candidateID int) (*model.ExamSession, error)
	CreateOngoing(ctx context.Context, s *model.ExamSession) error
	// Finalize locks an ONGOING session, passes its saved answers to grade
	// and records the returned score and answers atomically.
	Finalize(ctx context.Context, id uuid.UUID, candidateID int, grade func(saved []model.CandidateAnswer) (float64, []model.CandidateAnswer)) (*model.ExamSession, error)
	ListByCandidate(ctx context.Context, candidateID int) ([]model.ExamSession, error)
}

// QuestionStore reads the question bank.
type QuestionStore interface {
	MaxID(ctx context.Context) (int64, error)
	ListPinned(ctx context.Context, cutoff int64, limit int) ([]model.Question, error)
}

// QuestionSetCache caches pinned question sets. A miss is (nil, false, nil).
type QuestionSetCache interface {
	Get(ctx context.Context, cutoff int64, limit int) ([]model.Question, bool, error)
	Set(ctx context.Context, cutoff int64, limit int, questions []model.Question) error
}

// AnswerStore persists the latest answer per question.
type AnswerStore interface {
	Upsert(ctx context.Context, sessionID uuid.UUID, questionID int64, answer string) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.CandidateAnswer, error)
}

// EventStore is the append-only proctoring log.
type EventStore interface {
	Append(ctx context.Context, e *model.ProctorEvent) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorEvent, error)
}

// CandidateStore reads candidate identity profiles.
type CandidateStore interface {
	GetByID(ctx context.Context, id int) (*model.Candidate, error)
}
