package proctoring

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

// DefaultMaxFrameBytes bounds a single decoded frame.
const DefaultMaxFrameBytes = 4 * 1024 * 1024

// Base64Decoder decodes base64 JPEG/PNG frames sent by the browser.
type Base64Decoder struct {
	MaxBytes int
}

// NewBase64Decoder creates a decoder with the given size limit (0 = default).
func NewBase64Decoder(maxBytes int) *Base64Decoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &Base64Decoder{MaxBytes: maxBytes}
}

// DecodeFrame implements FrameDecoder.
func (d *Base64Decoder) DecodeFrame(ctx context.Context, encoded string) (*Frame, error) {
	payload := strings.TrimSpace(encoded)
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > d.MaxBytes {
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrDecode, d.MaxBytes)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
		}
	}
	return d.DecodeImage(ctx, raw)
}

// DecodeImage implements FrameDecoder.
func (d *Base64Decoder) DecodeImage(_ context.Context, raw []byte) (*Frame, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if len(raw) > d.MaxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrDecode, d.MaxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &Frame{Image: img, Encoded: raw, Format: format}, nil
}
