package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctoring"
)

type stubFace struct {
	match bool
	calls atomic.Int32
}

func (s *stubFace) Match(context.Context, *proctoring.Frame, *proctoring.Frame) (bool, error) {
	s.calls.Add(1)
	return s.match, nil
}

type stubObjects []string

func (s stubObjects) Detect(context.Context, *proctoring.Frame) ([]string, error) {
	return s, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type proctorFixture struct {
	store    *memStore
	svc      *ProctorService
	face     *stubFace
	notifier *recordingNotifier
	session  *model.ExamSession
	frame    string
}

func newProctorFixture(t *testing.T, objects []string, candidate *model.Candidate, uploadDir string) *proctorFixture {
	t.Helper()

	store := newMemStore(scenarioQuestions()...)
	started, err := newSessionService(store, 64).StartOrResume(context.Background(), candidate.ID)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	face := &stubFace{match: true}
	orch := proctoring.NewOrchestrator(proctoring.Providers{
		Face:    face,
		Objects: stubObjects(objects),
	}, proctoring.Options{Timeout: time.Second}, zerolog.Nop())

	notifier := &recordingNotifier{}
	svc := NewProctorService(store, fakeCandidates{candidate.ID: candidate}, eventStore{store}, orch, notifier, uploadDir, zerolog.Nop())

	return &proctorFixture{
		store:    store,
		svc:      svc,
		face:     face,
		notifier: notifier,
		session:  started.Session,
		frame:    base64.StdEncoding.EncodeToString(pngBytes(t)),
	}
}

func (f *proctorFixture) events(t *testing.T) []model.ProctorEvent {
	t.Helper()
	events, err := f.svc.Events(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	return events
}

func TestRecord_MissingReferenceIsWarning(t *testing.T) {
	f := newProctorFixture(t, []string{"person"}, &model.Candidate{ID: 1, Name: "No Photo"}, t.TempDir())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.svc.Record(ctx, f.session.ID, 1, model.ProctorFrameRequest{Frame: f.frame})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if res.Kind != model.EventKindWarning {
			t.Errorf("Kind = %s, want WARNING", res.Kind)
		}
		if res.Movement != string(proctoring.MovementNormal) {
			t.Errorf("Movement = %s, want normal", res.Movement)
		}
		if res.FaceMatch {
			t.Error("FaceMatch should be false without a reference")
		}
	}

	if n := f.face.calls.Load(); n != 0 {
		t.Errorf("face matcher called %d times without a reference", n)
	}
	if events := f.events(t); len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
}

func TestRecord_ReferenceFromUploadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "faces"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "faces", "1.png"), pngBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}
	path := "faces/1.png"

	f := newProctorFixture(t, []string{"person"}, &model.Candidate{ID: 1, FaceImagePath: &path}, dir)

	res, err := f.svc.Record(context.Background(), f.session.ID, 1, model.ProctorFrameRequest{Frame: f.frame})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if res.Kind != model.EventKindCheck || !res.FaceMatch {
		t.Errorf("got kind %s face %v, want CHECK true", res.Kind, res.FaceMatch)
	}
	if n := f.face.calls.Load(); n != 1 {
		t.Errorf("face matcher calls = %d, want 1", n)
	}
}

func TestRecord_AlertIsNotified(t *testing.T) {
	f := newProctorFixture(t, []string{"person", "person"}, &model.Candidate{ID: 1}, t.TempDir())

	res, err := f.svc.Record(context.Background(), f.session.ID, 1, model.ProctorFrameRequest{Frame: f.frame})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if res.Kind != model.EventKindAlert {
		t.Fatalf("Kind = %s, want ALERT", res.Kind)
	}

	if len(f.notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.sent))
	}
	sent := f.notifier.sent[0]
	if sent.Event.Kind != model.EventKindAlert || sent.Event.ID == 0 || sent.CandidateID != 1 {
		t.Errorf("unexpected notification: %+v", sent)
	}
}

func TestRecord_NotifierFailureDoesNotFailCall(t *testing.T) {
	f := newProctorFixture(t, []string{"cell phone"}, &model.Candidate{ID: 1}, t.TempDir())
	f.notifier.err = errBoom

	if _, err := f.svc.Record(context.Background(), f.session.ID, 1, model.ProctorFrameRequest{Frame: f.frame}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}

func TestRecord_DecodeFailure(t *testing.T) {
	f := newProctorFixture(t, nil, &model.Candidate{ID: 1}, t.TempDir())

	_, err := f.svc.Record(context.Background(), f.session.ID, 1, model.ProctorFrameRequest{Frame: "!!not-an-image!!"})
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("error = %v, want ErrDecodeFailure", err)
	}

	events := f.events(t)
	if len(events) != 1 || events[0].Kind != model.EventKindError {
		t.Fatalf("events = %+v, want one ERROR event", events)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("decode failures must not notify reviewers")
	}
}

func TestRecord_InactiveSession(t *testing.T) {
	f := newProctorFixture(t, nil, &model.Candidate{ID: 1}, t.TempDir())
	ctx := context.Background()

	if _, err := f.svc.Record(ctx, f.session.ID, 2, model.ProctorFrameRequest{Frame: f.frame}); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("foreign candidate: error = %v, want ErrSessionNotActive", err)
	}

	if _, err := newSessionService(f.store, 64).Finalize(ctx, f.session.ID, 1, nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if _, err := f.svc.Record(ctx, f.session.ID, 1, model.ProctorFrameRequest{Frame: f.frame}); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("finished session: error = %v, want ErrSessionNotActive", err)
	}
	if events := f.events(t); len(events) != 0 {
		t.Errorf("events = %d, want none for rejected calls", len(events))
	}
}

func TestRecord_PersistenceFailure(t *testing.T) {
	f := newProctorFixture(t, nil, &model.Candidate{ID: 1}, t.TempDir())
	f.store.appendErr = errBoom

	_, err := f.svc.Record(context.Background(), f.session.ID, 1, model.ProctorFrameRequest{Frame: f.frame})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}
}
