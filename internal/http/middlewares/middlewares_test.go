package middlewares

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/demoslots/internal/observability"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) { c.Status(http.StatusOK) }

func TestRateLimiter_BlocksAfterLimitAndResets(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/students", rl.RateLimiterMiddleware(KeyByIP), okHandler)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/students", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := do(); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}

	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After: got %q", w.Header().Get("Retry-After"))
	}

	now = now.Add(61 * time.Second)
	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("after window: got %d", w.Code)
	}
}

func TestRateLimiter_DisabledWithZeroLimit(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)

	r := gin.New()
	r.POST("/students", rl.RateLimiterMiddleware(KeyByIP), okHandler)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/students", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("got %d", w.Code)
		}
	}
}

func TestRequireBodyType(t *testing.T) {
	r := gin.New()
	r.Use(RequireBodyType("application/json", "application/x-www-form-urlencoded"))
	r.POST("/students", okHandler)
	r.GET("/students", okHandler)

	tests := []struct {
		method, contentType string
		want                int
	}{
		{http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{http.MethodPost, "application/x-www-form-urlencoded", http.StatusOK},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, "", http.StatusUnsupportedMediaType},
		{http.MethodGet, "", http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/students", strings.NewReader("{}"))
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Fatalf("%s %q: got %d want %d", tt.method, tt.contentType, w.Code, tt.want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://demo.example.edu/"}))
	r.GET("/demo-slots", okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/demo-slots", nil)
	req.Header.Set("Origin", "https://demo.example.edu")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://demo.example.edu" {
		t.Fatalf("allow-origin: got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/demo-slots", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow-origin for unknown origin")
	}
}

func TestRequestID_PropagatesToLogs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(observability.NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

	r := gin.New()
	r.Use(RequestID(), RequestLogger(log))
	r.GET("/demo-slots", func(c *gin.Context) {
		id, ok := observability.RequestIDFromContext(c.Request.Context())
		if !ok || id != "abc-123" {
			t.Errorf("request context id: got %q", id)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/demo-slots", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "abc-123" {
		t.Fatalf("header not echoed")
	}
	if !strings.Contains(buf.String(), `"request_id":"abc-123"`) {
		t.Fatalf("request log missing request_id: %s", buf.String())
	}
}

func TestRequestID_MintsWhenMissing(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/healthz", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if len(w.Header().Get("X-Request-Id")) != 36 {
		t.Fatalf("expected a uuid request id, got %q", w.Header().Get("X-Request-Id"))
	}
}
