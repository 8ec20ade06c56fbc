package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// FaceImageSaver registers a candidate's reference image.
type FaceImageSaver interface {
	SaveFaceImage(ctx context.Context, candidateID int, contentType string, file io.Reader) (string, error)
}

// FaceHandler handles reference image uploads.
type FaceHandler struct {
	faces FaceImageSaver
	log   zerolog.Logger
}

// NewFaceHandler creates a new FaceHandler.
func NewFaceHandler(faces FaceImageSaver, log zerolog.Logger) *FaceHandler {
	return &FaceHandler{
		faces: faces,
		log:   log.With().Str("component", "face_handler").Logger(),
	}
}

// UploadFace godoc
// POST /api/v1/reviewer/candidates/:candidate_id/face
// Replaces the candidate's registered face image (multipart field "file").
func (h *FaceHandler) UploadFace(c *gin.Context) {
	candidateID, err := strconv.Atoi(c.Param("candidate_id"))
	if err != nil || candidateID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	path, err := h.faces.SaveFaceImage(c.Request.Context(), candidateID, header.Header.Get("Content-Type"), file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFileType):
			response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		case errors.Is(err, service.ErrFileTooLarge):
			response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
		case errors.Is(err, service.ErrNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrCandidateNotFound)
		default:
			failFromError(c, h.log, err)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"candidate_id": candidateID, "face_image_path": path})
}
