package proctoring

import (
	"context"
	"errors"
	"image/color"
)

// DefaultMotionThreshold is the mean absolute grayscale difference above
// which movement is considered suspicious.
const DefaultMotionThreshold = 20.0

// FrameDiffAnalyzer scores movement by simple frame differencing.
type FrameDiffAnalyzer struct {
	Threshold float64
}

// NewFrameDiffAnalyzer creates an analyzer with the default threshold.
func NewFrameDiffAnalyzer() *FrameDiffAnalyzer {
	return &FrameDiffAnalyzer{Threshold: DefaultMotionThreshold}
}

// Analyze implements MotionAnalyzer.
func (a *FrameDiffAnalyzer) Analyze(ctx context.Context, prev, curr *Frame) (Movement, error) {
	if prev == nil || curr == nil || prev.Image == nil || curr.Image == nil {
		return MovementUnknown, nil
	}

	score, err := MotionScore(ctx, prev, curr)
	if err != nil {
		return MovementError, err
	}
	if score > a.Threshold {
		return MovementSuspicious, nil
	}
	return MovementNormal, nil
}

// MotionScore returns the mean absolute grayscale difference of two
// equally-sized frames.
func MotionScore(ctx context.Context, prev, curr *Frame) (float64, error) {
	pb, cb := prev.Image.Bounds(), curr.Image.Bounds()
	if pb.Dx() != cb.Dx() || pb.Dy() != cb.Dy() {
		return 0, errors.New("frame size mismatch")
	}
	if cb.Empty() {
		return 0, errors.New("empty frame")
	}

	var sum uint64
	for y := 0; y < cb.Dy(); y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		for x := 0; x < cb.Dx(); x++ {
			p := gray(prev.Image.At(pb.Min.X+x, pb.Min.Y+y))
			c := gray(curr.Image.At(cb.Min.X+x, cb.Min.Y+y))
			if p > c {
				sum += uint64(p - c)
			} else {
				sum += uint64(c - p)
			}
		}
	}
	return float64(sum) / float64(cb.Dx()*cb.Dy()), nil
}

func gray(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}
