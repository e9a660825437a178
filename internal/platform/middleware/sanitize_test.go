package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

func newSanitizeEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	e.Use(Sanitize(zerolog.New(os.Stderr)))
	e.GET("/*", okHandler)
	return e
}

func TestSanitize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"dot dot", "/../../etc/passwd"},
		{"encoded dot dot", "/%2e%2e/%2e%2e/etc/passwd"},
		{"double encoded", "/%252e%252e/etc/passwd"},
		{"null byte in path", "/file%00.txt"},
		{"null byte in query", "/api/patients?q=a%00b"},
		{"script in query", "/api/patients?q=%3Cscript%3Ealert(1)%3C/script%3E"},
		{"javascript scheme", "/api/patients?next=javascript:alert(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newSanitizeEcho()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestSanitize_AllowsNormalRequests(t *testing.T) {
	e := newSanitizeEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/patients?q=garc%C3%ADa&page=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSanitize_OversizedHeader(t *testing.T) {
	e := newSanitizeEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	big := make([]byte, maxHeaderValueSize+1)
	for i := range big {
		big[i] = 'a'
	}
	req.Header.Set("X-Custom", string(big))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCleanString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b", "ab"},
		{"line1\nline2\t", "line1\nline2"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		if got := CleanString(tt.in); got != tt.want {
			t.Errorf("CleanString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
