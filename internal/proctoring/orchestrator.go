package proctoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// DefaultProviderTimeout bounds each capability provider call.
const DefaultProviderTimeout = 3 * time.Second

const personLabel = "person"

// Provider names used in Outcome.Defaulted.
const (
	ProviderFace    = "face_matcher"
	ProviderObjects = "object_detector"
	ProviderMotion  = "motion_analyzer"
)

// Input is one frame to analyse. Reference holds the raw bytes of the
// candidate's registered photo and may be nil.
type Input struct {
	Frame         string
	PreviousFrame string
	Reference     []byte
}

// Outcome is the classified result of one analysis.
type Outcome struct {
	FaceMatch        bool
	FaceChecked      bool
	Objects          []string
	Movement         Movement
	Kind             model.EventKind
	Alerts           []string
	Defaulted        []string
	MissingFrame     bool
	MissingReference bool
	Details          string
}

// Options configures an Orchestrator.
type Options struct {
	Timeout           time.Duration
	DisallowedObjects []string
}

// Orchestrator fans a frame out to the capability providers and classifies
// the joined results. It holds no per-session state.
type Orchestrator struct {
	decoder    FrameDecoder
	face       FaceMatcher
	objects    ObjectDetector
	motion     MotionAnalyzer
	timeout    time.Duration
	disallowed []string
	log        zerolog.Logger
}

// NewOrchestrator creates an Orchestrator from injected providers.
func NewOrchestrator(p Providers, opts Options, log zerolog.Logger) *Orchestrator {
	if p.Decoder == nil {
		p.Decoder = NewBase64Decoder(0)
	}
	if p.Face == nil {
		p.Face = Unavailable()
	}
	if p.Objects == nil {
		p.Objects = Unavailable()
	}
	if p.Motion == nil {
		p.Motion = NewFrameDiffAnalyzer()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProviderTimeout
	}
	if len(opts.DisallowedObjects) == 0 {
		opts.DisallowedObjects = []string{"cell phone"}
	}

	return &Orchestrator{
		decoder:    p.Decoder,
		face:       p.Face,
		objects:    p.Objects,
		motion:     p.Motion,
		timeout:    opts.Timeout,
		disallowed: opts.DisallowedObjects,
		log:        log.With().Str("component", "proctor_orchestrator").Logger(),
	}
}

// Analyze examines one frame. Provider failures are absorbed into default
// sub-results. Only an undecodable current frame returns an error (wrapping
// ErrDecode); the returned Outcome then has Kind ERROR and no sub-results.
func (o *Orchestrator) Analyze(ctx context.Context, in Input) (Outcome, error) {
	out := Outcome{Objects: []string{}, Movement: MovementNormal}

	if strings.TrimSpace(in.Frame) == "" {
		out.MissingFrame = true
		out.Kind = model.EventKindWarning
		out.Details = "Frame data not provided by client."
		return out, nil
	}

	current, err := o.decoder.DecodeFrame(ctx, in.Frame)
	if err != nil {
		out.Kind = model.EventKindError
		out.Details = fmt.Sprintf("Could not decode current frame: %v", err)
		return out, fmt.Errorf("decode current frame: %w", err)
	}

	var reference *Frame
	if len(in.Reference) > 0 {
		reference, err = o.decoder.DecodeImage(ctx, in.Reference)
		if err != nil {
			o.log.Warn().Err(err).Msg("Reference image unusable, skipping identity check")
			reference = nil
		}
	}
	out.MissingReference = reference == nil

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		defaults []string
	)
	markDefault := func(provider string, err error) {
		o.log.Warn().Err(err).Str("provider", provider).Msg("Provider defaulted")
		mu.Lock()
		defaults = append(defaults, fmt.Sprintf("%s (%v)", provider, err))
		mu.Unlock()
	}

	if reference != nil {
		out.FaceChecked = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			match, err := invoke(ctx, o.timeout, func(ctx context.Context) (bool, error) {
				return o.face.Match(ctx, current, reference)
			})
			if err != nil {
				markDefault(ProviderFace, err)
				match = false
			}
			out.FaceMatch = match
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		labels, err := invoke(ctx, o.timeout, func(ctx context.Context) ([]string, error) {
			return o.objects.Detect(ctx, current)
		})
		if err != nil {
			markDefault(ProviderObjects, err)
			labels = nil
		}
		if labels == nil {
			labels = []string{}
		}
		out.Objects = labels
	}()

	if strings.TrimSpace(in.PreviousFrame) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev, err := o.decoder.DecodeFrame(ctx, in.PreviousFrame)
			if err != nil {
				o.log.Warn().Err(err).Msg("Previous frame unusable for movement detection")
				out.Movement = MovementUnknown
				return
			}
			movement, err := invoke(ctx, o.timeout, func(ctx context.Context) (Movement, error) {
				return o.motion.Analyze(ctx, prev, current)
			})
			if err != nil {
				markDefault(ProviderMotion, err)
				movement = MovementError
			}
			out.Movement = movement
		}()
	}

	wg.Wait()

	out.Defaulted = defaults
	out.Alerts = o.alerts(out)
	switch {
	case len(out.Alerts) > 0:
		out.Kind = model.EventKindAlert
	case out.MissingReference:
		out.Kind = model.EventKindWarning
	default:
		out.Kind = model.EventKindCheck
	}
	out.Details = details(out)
	return out, nil
}

func (o *Orchestrator) alerts(out Outcome) []string {
	var alerts []string

	present := make(map[string]int, len(out.Objects))
	for _, label := range out.Objects {
		present[strings.ToLower(strings.TrimSpace(label))]++
	}
	for _, banned := range o.disallowed {
		if present[strings.ToLower(banned)] > 0 {
			alerts = append(alerts, "Prohibited object: "+banned)
		}
	}
	if present[personLabel] > 1 {
		alerts = append(alerts, "Multiple people")
	}
	if out.FaceChecked && !out.FaceMatch {
		alerts = append(alerts, "Face mismatch")
	}
	if out.Movement == MovementSuspicious {
		alerts = append(alerts, "Suspicious movement")
	}
	return alerts
}

// details renders a stable summary, e.g.
// "Face Match: true, Objects: [person], Movement: normal | ALERTS: Multiple people".
func details(out Outcome) string {
	face := "skipped"
	if out.FaceChecked {
		face = fmt.Sprintf("%t", out.FaceMatch)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Face Match: %s, Objects: [%s], Movement: %s",
		face, strings.Join(out.Objects, ", "), out.Movement)
	if len(out.Alerts) > 0 {
		b.WriteString(" | ALERTS: " + strings.Join(out.Alerts, ", "))
	}
	if out.MissingReference {
		b.WriteString(" | NOTE: registered face data missing, identity check skipped")
	}
	if len(out.Defaulted) > 0 {
		b.WriteString(" | DEFAULTED: " + strings.Join(out.Defaulted, "; "))
	}
	return b.String()
}

// invoke runs fn with a deadline and converts panics into errors. A provider
// that ignores its context is abandoned when the deadline passes.
func invoke[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
