package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctoring"
)

// Sentinel errors for reference image uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// faceDir is the subdirectory of the upload directory holding reference images.
const faceDir = "faces"

// Allowed image MIME types. The decoder only understands these two.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// FaceStore is satisfied by repository.CandidateRepository.
type FaceStore interface {
	GetByID(ctx context.Context, id int) (*model.Candidate, error)
	UpdateFaceImage(ctx context.Context, id int, path string) error
}

// FaceImageService stores candidates' registered face images.
type FaceImageService struct {
	candidates FaceStore
	decoder    proctoring.FrameDecoder
	uploadDir  string
	maxBytes   int64
	log        zerolog.Logger
}

// NewFaceImageService creates a new FaceImageService.
func NewFaceImageService(candidates FaceStore, decoder proctoring.FrameDecoder, uploadDir string, maxBytes int64, log zerolog.Logger) *FaceImageService {
	return &FaceImageService{
		candidates: candidates,
		decoder:    decoder,
		uploadDir:  uploadDir,
		maxBytes:   maxBytes,
		log:        log.With().Str("component", "face_image_service").Logger(),
	}
}

// SaveFaceImage validates an uploaded image, writes it under the upload
// directory with a UUID filename and points the candidate at it. The returned
// path is relative to the upload directory.
func (s *FaceImageService) SaveFaceImage(ctx context.Context, candidateID int, contentType string, file io.Reader) (string, error) {
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	raw, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > s.maxBytes {
		return "", fmt.Errorf("%w: max %d bytes", ErrFileTooLarge, s.maxBytes)
	}
	if _, err := s.decoder.DecodeImage(ctx, raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFileType, err)
	}

	candidate, err := s.candidates.GetByID(ctx, candidateID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get candidate: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(s.uploadDir, faceDir), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	relPath := filepath.ToSlash(filepath.Join(faceDir, uuid.New().String()+ext))
	if err := writeFile(filepath.Join(s.uploadDir, relPath), raw); err != nil {
		return "", err
	}

	if err := s.candidates.UpdateFaceImage(ctx, candidate.ID, relPath); err != nil {
		os.Remove(filepath.Join(s.uploadDir, relPath))
		return "", fmt.Errorf("%w: update candidate: %v", ErrPersistence, err)
	}

	// The previous image is no longer referenced.
	if candidate.FaceImagePath != nil && *candidate.FaceImagePath != "" {
		old := filepath.Join(s.uploadDir, filepath.Clean("/"+*candidate.FaceImagePath))
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Int("candidate_id", candidate.ID).Msg("Failed to remove previous face image")
		}
	}

	s.log.Info().Int("candidate_id", candidate.ID).Str("path", relPath).Msg("Face image registered")
	return relPath, nil
}

func writeFile(path string, data []byte) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	return types
}
