package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusOngoing  SessionStatus = "ONGOING"
	SessionStatusFinished SessionStatus = "FINISHED"
)

// ExamSession represents a candidate's single exam attempt.
// QuestionCutoff and QuestionCount pin the question set chosen at start.
type ExamSession struct {
	ID             uuid.UUID     `json:"id"`
	CandidateID    int           `json:"candidate_id"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Score          float64       `json:"score"`
	QuestionCutoff int64         `json:"-"`
	QuestionCount  int           `json:"question_count"`
}

// Ongoing reports whether the session still accepts answers and frames.
func (s *ExamSession) Ongoing() bool {
	return s.Status == SessionStatusOngoing
}

// CandidateAnswer is the latest raw answer for a (session, question) pair.
type CandidateAnswer struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	Answer     string    `json:"answer"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StartSessionResponse is returned by StartOrResumeSession.
type StartSessionResponse struct {
	Session   *ExamSession           `json:"session"`
	Questions []QuestionForCandidate `json:"questions"`
	Resumed   bool                   `json:"resumed"`
}

// MaxAnswerLength caps a single raw answer, in characters.
const MaxAnswerLength = 1024

// FinalizeSessionRequest carries the submitted answers keyed by question id.
// Values are either a string or, for multi-choice, a list of option letters.
type FinalizeSessionRequest struct {
	Answers map[string]AnswerValue `json:"answers" binding:"required,dive,max=1024"`
}

// SaveAnswerRequest is the autosave payload for a single question.
type SaveAnswerRequest struct {
	Answer AnswerValue `json:"answer" binding:"max=1024"`
}

// SessionResult is the review payload for a session.
type SessionResult struct {
	Session       *ExamSession      `json:"session"`
	Answers       []CandidateAnswer `json:"answers"`
	ProctorEvents []ProctorEvent    `json:"proctor_events"`
}

// MonitoredSession is one row of the reviewer monitor snapshot.
type MonitoredSession struct {
	SessionID     uuid.UUID `json:"session_id"`
	CandidateID   int       `json:"candidate_id"`
	CandidateName string    `json:"candidate_name"`
	StartedAt     time.Time `json:"started_at"`
	QuestionCount int       `json:"question_count"`
	AnsweredCount int64     `json:"answered_count"`
	AlertCount    int64     `json:"alert_count"`
}
