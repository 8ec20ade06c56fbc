// Package proctoring analyses candidate camera frames through pluggable
// capability providers and classifies the combined result.
package proctoring

import (
	"context"
	"errors"
	"image"
)

// Movement is the MotionAnalyzer verdict.
type Movement string

const (
	MovementNormal     Movement = "normal"
	MovementSuspicious Movement = "suspicious"
	MovementUnknown    Movement = "unknown"
	MovementError      Movement = "error"
)

var (
	// ErrDecode marks unusable image bytes.
	ErrDecode = errors.New("frame decode failure")
	// ErrProviderUnavailable is returned by providers that are not configured.
	ErrProviderUnavailable = errors.New("capability provider unavailable")
)

// Frame is a decoded image together with its encoded bytes, which remote
// providers forward as-is.
type Frame struct {
	Image   image.Image
	Encoded []byte
	Format  string
}

// FrameDecoder turns client payloads into frames.
type FrameDecoder interface {
	// DecodeFrame decodes a base64 frame, optionally wrapped in a data URL.
	DecodeFrame(ctx context.Context, encoded string) (*Frame, error)
	// DecodeImage decodes raw image bytes such as a stored reference photo.
	DecodeImage(ctx context.Context, raw []byte) (*Frame, error)
}

// FaceMatcher reports whether the face in frame belongs to the reference identity.
type FaceMatcher interface {
	Match(ctx context.Context, frame, reference *Frame) (bool, error)
}

// ObjectDetector returns the labels of objects visible in frame.
type ObjectDetector interface {
	Detect(ctx context.Context, frame *Frame) ([]string, error)
}

// MotionAnalyzer compares two consecutive frames.
type MotionAnalyzer interface {
	Analyze(ctx context.Context, prev, curr *Frame) (Movement, error)
}

// Providers groups the injected capability providers. A nil Face or Objects
// entry is replaced by a provider that always fails, so its result is
// defaulted.
type Providers struct {
	Decoder FrameDecoder
	Face    FaceMatcher
	Objects ObjectDetector
	Motion  MotionAnalyzer
}

type unavailable struct{}

func (unavailable) Match(context.Context, *Frame, *Frame) (bool, error) {
	return false, ErrProviderUnavailable
}

func (unavailable) Detect(context.Context, *Frame) ([]string, error) {
	return nil, ErrProviderUnavailable
}

func (unavailable) Analyze(context.Context, *Frame, *Frame) (Movement, error) {
	return MovementError, ErrProviderUnavailable
}

// Unavailable returns a provider that fails every call.
func Unavailable() interface {
	FaceMatcher
	ObjectDetector
	MotionAnalyzer
} {
	return unavailable{}
}
