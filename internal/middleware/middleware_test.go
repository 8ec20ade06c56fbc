package middleware

import (
	"io"
	"net/http"
	"strings"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireCandidateJWT(t *testing.T) {
	auth := service.NewAuthService("secret", time.Hour)
	candidate, _ := auth.GenerateToken(3, service.TokenTypeCandidate)
	reviewer, _ := auth.GenerateToken(4, service.TokenTypeReviewer)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"reviewer token", "Bearer " + reviewer, "", http.StatusForbidden},
		{"candidate header", "Bearer " + candidate, "", http.StatusOK},
		{"candidate query", "", candidate, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", RequireCandidateJWT(auth), func(c *gin.Context) {
				if claims := GetClaims(c); claims == nil || claims.UserID != 3 {
					t.Errorf("claims = %+v", claims)
				}
				c.Status(http.StatusOK)
			})

			url := "/x"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("bucket should refill after one interval")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("visitors = %d after cleanup, want 0", len(rl.visitors))
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.GET("/x", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestCompress(t *testing.T) {
	long := strings.Repeat("proctor event ", 200)
	r := gin.New()
	r.Use(Compress(5, 256))
	r.GET("/long", func(c *gin.Context) { c.String(http.StatusOK, long) })
	r.GET("/short", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	serve := func(path, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", accept)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := serve("/long", "gzip, br;q=0.9")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Content-Encoding = %q, want br", w.Header().Get("Content-Encoding"))
	}
	body, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body) != long {
		t.Error("decoded body differs from original")
	}

	w = serve("/short", "br")
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("short body: encoding %q, body %q", w.Header().Get("Content-Encoding"), w.Body.String())
	}

	w = serve("/long", "gzip")
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != long {
		t.Error("client without br support should get the plain body")
	}
}
