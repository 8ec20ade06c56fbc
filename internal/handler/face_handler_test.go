package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

type fakeFaceSaver struct {
	err         error
	candidateID int
	contentType string
	body        string
}

func (f *fakeFaceSaver) SaveFaceImage(_ context.Context, candidateID int, contentType string, file io.Reader) (string, error) {
	f.candidateID = candidateID
	f.contentType = contentType
	b, _ := io.ReadAll(file)
	f.body = string(b)
	if f.err != nil {
		return "", f.err
	}
	return "faces/new.png", nil
}

func faceUpload(t *testing.T, r http.Handler, url, contentType string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if contentType != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="face.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte("image-bytes"))
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestUploadFace(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		err         error
		want        int
		code        response.ErrCode
	}{
		{"stored", "/candidates/5/face", "image/png", nil, http.StatusOK, ""},
		{"bad id", "/candidates/abc/face", "image/png", nil, http.StatusBadRequest, response.ErrInvalidID},
		{"missing file", "/candidates/5/face", "", nil, http.StatusBadRequest, response.ErrFileRequired},
		{"unsupported", "/candidates/5/face", "image/gif", service.ErrUnsupportedFileType, http.StatusBadRequest, response.ErrUnsupportedFile},
		{"too large", "/candidates/5/face", "image/png", service.ErrFileTooLarge, http.StatusBadRequest, response.ErrFileTooLarge},
		{"unknown candidate", "/candidates/5/face", "image/png", fmt.Errorf("lookup: %w", service.ErrNotFound), http.StatusNotFound, response.ErrCandidateNotFound},
		{"storage failure", "/candidates/5/face", "image/png", service.ErrPersistence, http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeFaceSaver{err: tt.err}
			h := NewFaceHandler(saver, zerolog.Nop())
			r := gin.New()
			r.POST("/candidates/:candidate_id/face", h.UploadFace)

			status, env := faceUpload(t, r, tt.url, tt.contentType)
			if status != tt.want {
				t.Fatalf("status = %d, want %d", status, tt.want)
			}
			if tt.code != "" {
				if env.Error == nil || env.Error.Code != tt.code {
					t.Errorf("error = %+v, want %s", env.Error, tt.code)
				}
				return
			}

			if saver.candidateID != 5 || saver.contentType != "image/png" || saver.body != "image-bytes" {
				t.Errorf("saver got id=%d type=%q body=%q", saver.candidateID, saver.contentType, saver.body)
			}
			var data struct {
				Path string `json:"face_image_path"`
			}
			_ = json.Unmarshal(env.Data, &data)
			if data.Path != "faces/new.png" {
				t.Errorf("path = %q", data.Path)
			}
		})
	}
}
