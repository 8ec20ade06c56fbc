package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// memStore is an in-memory stand-in for the repositories. It mirrors the
// database constraints the services rely on: one ONGOING session per
// candidate and a compare-and-set finalize.
type memStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*model.ExamSession
	answers   map[uuid.UUID]map[int64]string
	events    []model.ProctorEvent
	questions []model.Question
	nextEvent int64

	appendErr error
	// beforeFinalize runs ahead of the finalize lock, simulating a write
	// that commits just before the session row is locked.
	beforeFinalize func()
}

func newMemStore(questions ...model.Question) *memStore {
	return &memStore{
		sessions:  make(map[uuid.UUID]*model.ExamSession),
		answers:   make(map[uuid.UUID]map[int64]string),
		questions: questions,
	}
}

func (m *memStore) GetOngoingByCandidate(_ context.Context, candidateID int) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.CandidateID == candidateID && s.Ongoing() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetByIDAndCandidate(_ context.Context, id uuid.UUID, candidateID int) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.CandidateID != candidateID {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CreateOngoing(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.CandidateID == s.CandidateID && existing.Ongoing() {
			return pgx.ErrNoRows
		}
	}
	s.ID = uuid.New()
	s.StartedAt = time.Now()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) Finalize(_ context.Context, id uuid.UUID, candidateID int, grade func([]model.CandidateAnswer) (float64, []model.CandidateAnswer)) (*model.ExamSession, error) {
	if m.beforeFinalize != nil {
		m.beforeFinalize()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.CandidateID != candidateID || !s.Ongoing() {
		return nil, pgx.ErrNoRows
	}

	var saved []model.CandidateAnswer
	for qid, ans := range m.answers[id] {
		saved = append(saved, model.CandidateAnswer{SessionID: id, QuestionID: qid, Answer: ans})
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].QuestionID < saved[j].QuestionID })
	score, answers := grade(saved)

	now := time.Now()
	s.Status = model.SessionStatusFinished
	s.Score = score
	s.FinishedAt = &now
	for _, a := range answers {
		m.upsertLocked(id, a.QuestionID, a.Answer)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListByCandidate(_ context.Context, candidateID int) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.CandidateID == candidateID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) MaxID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, q := range m.questions {
		if q.ID > max {
			max = q.ID
		}
	}
	return max, nil
}

func (m *memStore) ListPinned(_ context.Context, cutoff int64, limit int) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Question
	for _, q := range m.questions {
		if q.ID <= cutoff {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) addQuestion(q model.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, q)
}

func (m *memStore) Upsert(_ context.Context, sessionID uuid.UUID, questionID int64, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.Ongoing() {
		return pgx.ErrNoRows
	}
	m.upsertLocked(sessionID, questionID, answer)
	return nil
}

func (m *memStore) upsertLocked(sessionID uuid.UUID, questionID int64, answer string) {
	if m.answers[sessionID] == nil {
		m.answers[sessionID] = make(map[int64]string)
	}
	m.answers[sessionID][questionID] = answer
}

func (m *memStore) answerCount(sessionID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.answers[sessionID])
}

// answerStore exposes the answer half of memStore; its ListBySession
// differs from the event store's.
type answerStore struct{ *memStore }

func (a answerStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.CandidateAnswer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.CandidateAnswer
	for qid, ans := range a.answers[sessionID] {
		out = append(out, model.CandidateAnswer{SessionID: sessionID, QuestionID: qid, Answer: ans})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

type eventStore struct{ *memStore }

func (e eventStore) Append(_ context.Context, ev *model.ProctorEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.appendErr != nil {
		return e.appendErr
	}
	e.nextEvent++
	ev.ID = e.nextEvent
	ev.RecordedAt = time.Now()
	e.events = append(e.events, *ev)
	return nil
}

func (e eventStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.ProctorEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []model.ProctorEvent
	for _, ev := range e.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeCandidates map[int]*model.Candidate

func (f fakeCandidates) GetByID(_ context.Context, id int) (*model.Candidate, error) {
	c, ok := f[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (f fakeCandidates) UpdateFaceImage(_ context.Context, id int, path string) error {
	c, ok := f[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.FaceImagePath = &path
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.AlertNotification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n model.AlertNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

var errBoom = errors.New("boom")
