package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/proctoring"
)

func TestFaceImageService_SaveFaceImage(t *testing.T) {
	dir := t.TempDir()
	old := "faces/old.png"
	if err := os.MkdirAll(filepath.Join(dir, "faces"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, old), pngBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}

	candidates := fakeCandidates{4: {ID: 4, Name: "Dewi", FaceImagePath: &old}}
	svc := NewFaceImageService(candidates, proctoring.NewBase64Decoder(0), dir, 1<<20, zerolog.Nop())
	ctx := context.Background()

	path, err := svc.SaveFaceImage(ctx, 4, "image/png", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("SaveFaceImage() error = %v", err)
	}
	if !strings.HasPrefix(path, "faces/") || !strings.HasSuffix(path, ".png") {
		t.Errorf("path = %q", path)
	}
	if got := candidates[4].FaceImagePath; got == nil || *got != path {
		t.Errorf("candidate path = %v, want %q", got, path)
	}
	if _, err := os.Stat(filepath.Join(dir, path)); err != nil {
		t.Errorf("stored image: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, old)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("previous image should be removed, stat err = %v", err)
	}

	tests := []struct {
		name        string
		candidateID int
		contentType string
		body        []byte
		want        error
	}{
		{"gif rejected", 4, "image/gif", pngBytes(t), ErrUnsupportedFileType},
		{"not an image", 4, "image/png", []byte("hello"), ErrUnsupportedFileType},
		{"unknown candidate", 9, "image/png", pngBytes(t), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveFaceImage(ctx, tt.candidateID, tt.contentType, bytes.NewReader(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	small := NewFaceImageService(fakeCandidates{1: {ID: 1}}, proctoring.NewBase64Decoder(0), dir, 8, zerolog.Nop())
	if _, err := small.SaveFaceImage(ctx, 1, "image/png", bytes.NewReader(pngBytes(t))); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversized upload: error = %v, want ErrFileTooLarge", err)
	}
	if candidates[4].FaceImagePath == nil {
		t.Error("failed uploads must not clear the registered image")
	}
}
