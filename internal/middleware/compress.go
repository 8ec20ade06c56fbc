package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// compressWriter buffers the body until minLength bytes are seen, then
// switches to brotli. Short bodies are written uncompressed on close.
type compressWriter struct {
	gin.ResponseWriter
	enc       *brotli.Writer
	quality   int
	minLength int
	pending   []byte
}

func (w *compressWriter) Write(data []byte) (int, error) {
	if w.enc != nil {
		return w.enc.Write(data)
	}
	w.pending = append(w.pending, data...)
	if len(w.pending) < w.minLength {
		return len(data), nil
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.enc = brotli.NewWriterLevel(w.ResponseWriter, w.quality)
	if _, err := w.enc.Write(w.pending); err != nil {
		return 0, err
	}
	w.pending = nil
	return len(data), nil
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *compressWriter) close() error {
	if w.enc != nil {
		return w.enc.Close()
	}
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	return err
}

// Compress brotli-encodes responses of at least minLength bytes for clients
// that accept "br". Event streams and websocket upgrades pass through.
func Compress(quality, minLength int) gin.HandlerFunc {
	if quality < brotli.BestSpeed || quality > brotli.BestCompression {
		quality = brotli.DefaultCompression
	}
	if minLength <= 0 {
		minLength = 1024
	}

	return func(c *gin.Context) {
		if isStreaming(c.Request) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		cw := &compressWriter{ResponseWriter: c.Writer, quality: quality, minLength: minLength}
		c.Writer = cw
		defer func() {
			if err := cw.close(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

func isStreaming(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
