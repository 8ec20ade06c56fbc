package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/scoring"
)

func scenarioQuestions() []model.Question {
	return []model.Question{
		{ID: 1, QuestionText: "Pick B", Type: model.QuestionTypeSingleChoice, Options: map[string]string{"A": "a", "B": "b"}, CorrectAnswer: "B", Marks: 1, NegativeMarks: 0.33},
		{ID: 2, QuestionText: "Half of eleven", Type: model.QuestionTypeNumeric, CorrectAnswer: "5.5", Marks: 2},
	}
}

func newSessionService(store *memStore, count int) *ExamSessionService {
	return NewExamSessionService(store, store, answerStore{store}, eventStore{store}, nil, count, zerolog.Nop())
}

func TestStartOrResume_CreatesThenResumes(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	first, err := svc.StartOrResume(ctx, 7)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if first.Resumed {
		t.Error("first call should create a session")
	}
	if len(first.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(first.Questions))
	}

	second, err := svc.StartOrResume(ctx, 7)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if !second.Resumed || second.Session.ID != first.Session.ID {
		t.Errorf("second call should resume %s, got %s (resumed=%v)", first.Session.ID, second.Session.ID, second.Resumed)
	}
}

func TestStartOrResume_ConcurrentCallsShareOneSession(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)

	const callers = 32
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.StartOrResume(context.Background(), 42)
			errs[i] = err
			if err == nil {
				ids[i] = res.Session.ID
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got session %s, want %s", i, ids[i], ids[0])
		}
	}

	sessions, _ := store.ListByCandidate(context.Background(), 42)
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want exactly 1", len(sessions))
	}
}

func TestStartOrResume_PinsQuestionSet(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, err := svc.StartOrResume(ctx, 1)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	store.addQuestion(model.Question{ID: 3, Type: model.QuestionTypeNumeric, CorrectAnswer: "1", Marks: 5})

	resumed, err := svc.StartOrResume(ctx, 1)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if len(resumed.Questions) != len(started.Questions) {
		t.Errorf("question set changed after resume: %d -> %d", len(started.Questions), len(resumed.Questions))
	}

	// A correct answer to the new question is ignored at finalize.
	res, err := svc.Finalize(ctx, started.Session.ID, 1, map[int64]string{3: "1"})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if res.Score != 0 {
		t.Errorf("score = %v, want 0", res.Score)
	}
}

func TestStartOrResume_LimitsQuestionCount(t *testing.T) {
	var questions []model.Question
	for i := int64(1); i <= 10; i++ {
		questions = append(questions, model.Question{ID: i, Type: model.QuestionTypeNumeric, CorrectAnswer: "1", Marks: 1})
	}
	svc := newSessionService(newMemStore(questions...), 4)

	res, err := svc.StartOrResume(context.Background(), 1)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if len(res.Questions) != 4 || res.Questions[0].ID != 1 || res.Questions[3].ID != 4 {
		t.Errorf("unexpected question set: %+v", res.Questions)
	}
}

func TestFinalize_EndToEndScore(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, err := svc.StartOrResume(ctx, 5)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	res, err := svc.Finalize(ctx, started.Session.ID, 5, map[int64]string{1: "A", 2: "5.5"})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if math.Abs(res.Score-1.67) > 1e-9 {
		t.Errorf("score = %v, want 1.67", res.Score)
	}
	if res.Session.Status != model.SessionStatusFinished || res.Session.FinishedAt == nil {
		t.Errorf("session not finished: %+v", res.Session)
	}
	if got := store.answerCount(started.Session.ID); got != 2 {
		t.Errorf("stored answers = %d, want 2", got)
	}
}

func TestFinalize_SecondCallIsNotFound(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		scores   []float64
		notFound int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Finalize(ctx, started.Session.ID, 5, map[int64]string{2: "5.5"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				scores = append(scores, res.Score)
			case errors.Is(err, ErrNotFound):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(scores) != 1 || notFound != 7 {
		t.Fatalf("got %d successes and %d not-found, want 1 and 7", len(scores), notFound)
	}

	// The finished session now starts fresh.
	next, err := svc.StartOrResume(ctx, 5)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if next.Resumed || next.Session.ID == started.Session.ID {
		t.Error("a finished session must not be resumed")
	}
}

func TestFinalize_Ownership(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, 5)

	tests := []struct {
		name        string
		sessionID   uuid.UUID
		candidateID int
	}{
		{"foreign candidate", started.Session.ID, 6},
		{"unknown session", uuid.New(), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Finalize(ctx, tt.sessionID, tt.candidateID, nil)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestFinalize_SubmittedOverridesAutosave(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, 9)
	id := started.Session.ID

	if err := svc.SaveAnswer(ctx, id, 9, 1, "B"); err != nil {
		t.Fatalf("SaveAnswer() error = %v", err)
	}
	if err := svc.SaveAnswer(ctx, id, 9, 2, "4"); err != nil {
		t.Fatalf("SaveAnswer() error = %v", err)
	}

	res, err := svc.Finalize(ctx, id, 9, map[int64]string{2: "5.5"})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if math.Abs(res.Score-3) > 1e-9 {
		t.Errorf("score = %v, want 3 (autosaved B plus submitted 5.5)", res.Score)
	}
}

func TestFinalize_ScoresAutosaveCommittedBeforeLock(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, 11)
	id := started.Session.ID

	store.beforeFinalize = func() {
		if err := svc.SaveAnswer(ctx, id, 11, 1, "B"); err != nil {
			t.Errorf("late SaveAnswer() error = %v", err)
		}
	}

	res, err := svc.Finalize(ctx, id, 11, map[int64]string{2: "5.5"})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	stored, _ := answerStore{store}.ListBySession(ctx, id)
	byID := make(map[int64]string, len(stored))
	for _, a := range stored {
		byID[a.QuestionID] = a.Answer
	}
	var rescored float64
	for _, q := range scenarioQuestions() {
		rescored += scoring.Score(q, byID[q.ID]).Earned
	}

	if len(stored) != 2 {
		t.Fatalf("stored answers = %+v, want 2", stored)
	}
	if math.Abs(res.Score-rescored) > 1e-9 || math.Abs(res.Score-3) > 1e-9 {
		t.Errorf("score = %v, recorded answers score %v, want both 3", res.Score, rescored)
	}
	if math.Abs(res.Session.Score-res.Score) > 1e-9 {
		t.Errorf("session score = %v, want %v", res.Session.Score, res.Score)
	}

	if err := svc.SaveAnswer(ctx, id, 11, 1, "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("autosave after finalize: error = %v, want ErrNotFound", err)
	}
}

func TestSaveAnswer(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, 3)
	id := started.Session.ID

	for i := 0; i < 3; i++ {
		if err := svc.SaveAnswer(ctx, id, 3, 1, "A"); err != nil {
			t.Fatalf("SaveAnswer() error = %v", err)
		}
	}
	if got := store.answerCount(id); got != 1 {
		t.Errorf("answers after repeated upsert = %d, want 1", got)
	}

	if err := svc.SaveAnswer(ctx, id, 3, 99, "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown question: error = %v, want ErrNotFound", err)
	}
	if err := svc.SaveAnswer(ctx, id, 4, 1, "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign candidate: error = %v, want ErrNotFound", err)
	}

	if _, err := svc.Finalize(ctx, id, 3, nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if err := svc.SaveAnswer(ctx, id, 3, 1, "B"); !errors.Is(err, ErrNotFound) {
		t.Errorf("finished session: error = %v, want ErrNotFound", err)
	}
}

func TestGetResult(t *testing.T) {
	store := newMemStore(scenarioQuestions()...)
	svc := newSessionService(store, 64)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, 2)
	id := started.Session.ID
	_ = eventStore{store}.Append(ctx, &model.ProctorEvent{SessionID: id, Kind: model.EventKindCheck, Details: "first"})
	_ = eventStore{store}.Append(ctx, &model.ProctorEvent{SessionID: id, Kind: model.EventKindAlert, Details: "second"})

	if _, err := svc.Finalize(ctx, id, 2, map[int64]string{2: "5.5", 1: "B"}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	res, err := svc.GetResult(ctx, id, 2)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if len(res.Answers) != 2 || res.Answers[0].QuestionID != 1 {
		t.Errorf("answers = %+v, want ordered by question id", res.Answers)
	}
	if len(res.ProctorEvents) != 2 || res.ProctorEvents[0].Details != "first" {
		t.Errorf("events = %+v", res.ProctorEvents)
	}

	if _, err := svc.GetResult(ctx, id, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign candidate: error = %v, want ErrNotFound", err)
	}

	review, err := svc.Review(ctx, id)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if review.Session.CandidateID != 2 || len(review.ProctorEvents) != 2 {
		t.Errorf("review = %+v", review)
	}
	if _, err := svc.Review(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session: error = %v, want ErrNotFound", err)
	}
}
