package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/config"
	"github.com/pacigest/pacigest/internal/domain/reminder"
	"github.com/pacigest/pacigest/internal/platform/notification"
	"github.com/pacigest/pacigest/internal/platform/scheduler"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "8000",
		Env:                    "test",
		LogLevel:               "debug",
		JWTSecret:              "0123456789abcdef0123456789abcdef",
		JWTTTL:                 time.Hour,
		FrontendURL:            "http://localhost:3000",
		CORSOrigins:            []string{"http://localhost:3000"},
		RateLimitRPS:           100,
		RateLimitBurst:         100,
		AuthRateLimitPerMinute: 10,
		RequestTimeout:         5 * time.Second,
		BodyLimit:              "1M",
		TrialDays:              7,
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.LogLevel = tt.level
		if got := newLogger(cfg).GetLevel(); got != tt.want {
			t.Errorf("level %q: got %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestNewServer_Routes(t *testing.T) {
	logger := zerolog.New(io.Discard)
	mailer := notification.NewManager(&notification.MockEmailSender{}, nil, logger)
	e := newServer(testConfig(), logger, nil, mailer)

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /",
		"GET /health",
		"GET /health/db",
		"POST /api/auth/register",
		"POST /api/auth/login",
		"GET /api/auth/me",
		"GET /api/staff",
		"GET /api/patients",
		"POST /api/patients/:id/restore",
		"GET /api/patients/:id/appointments",
		"PATCH /api/appointments/:id/confirm",
		"PATCH /api/appointments/:id/cancel",
		"GET /api/medical-records",
		"POST /api/medical-files",
		"PATCH /api/prescriptions/:id/cancel",
		"POST /api/payments",
		"POST /api/payments/webhook",
		"GET /api/subscription",
		"GET /api/stats/dashboard/:doctorId",
	} {
		if !registered[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestNewServer_Health(t *testing.T) {
	logger := zerolog.New(io.Discard)
	e := newServer(testConfig(), logger, nil, notification.NewManager(&notification.MockEmailSender{}, nil, logger))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestNewServer_ProtectedRoutesNeedToken(t *testing.T) {
	logger := zerolog.New(io.Discard)
	e := newServer(testConfig(), logger, nil, notification.NewManager(&notification.MockEmailSender{}, nil, logger))

	for _, path := range []string{"/api/patients", "/api/appointments", "/api/medical-records", "/api/subscription"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestMigrationFiles(t *testing.T) {
	if _, err := fs.Stat(migrationFiles(""), "001_core.sql"); err != nil {
		t.Errorf("expected the embedded core schema: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_local.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat(migrationFiles(dir), "001_local.sql"); err != nil {
		t.Errorf("expected --dir to be read from disk: %v", err)
	}
}

func TestNewServer_UnknownAPIPathIsNotFound(t *testing.T) {
	logger := zerolog.New(io.Discard)
	e := newServer(testConfig(), logger, nil, notification.NewManager(&notification.MockEmailSender{}, nil, logger))

	for _, path := range []string{"/api/nope", "/api", "/api/v2/patients"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

type fakeTicker struct {
	calls  int
	report *reminder.TickReport
	err    error
}

func (f *fakeTicker) Name() string { return "reminders" }

func (f *fakeTicker) Tick(context.Context) (*reminder.TickReport, error) {
	f.calls++
	return f.report, f.err
}

type heldLocker struct{ key string }

func (l *heldLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.key = key
	return nil, false, nil
}

func TestRunTick_PrintsReport(t *testing.T) {
	at := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	tk := &fakeTicker{report: &reminder.TickReport{At: at, Reminders24h: 2}}
	runner := scheduler.NewRunner(zerolog.New(io.Discard), scheduler.NoopLocker{}, time.Minute)

	var out bytes.Buffer
	if err := runTick(context.Background(), runner, &tickJob{reminders: tk}, &out); err != nil {
		t.Fatalf("runTick: %v", err)
	}
	if tk.calls != 1 {
		t.Errorf("expected one tick, got %d", tk.calls)
	}
	if !strings.Contains(out.String(), `"reminders_24h": 2`) {
		t.Errorf("unexpected report %s", out.String())
	}
}

func TestRunTick_HonoursLease(t *testing.T) {
	tk := &fakeTicker{report: &reminder.TickReport{}}
	locker := &heldLocker{}
	runner := scheduler.NewRunner(zerolog.New(io.Discard), locker, time.Minute)

	var out bytes.Buffer
	err := runTick(context.Background(), runner, &tickJob{reminders: tk}, &out)
	if !errors.Is(err, scheduler.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if tk.calls != 0 {
		t.Errorf("tick ran while the lease was held elsewhere")
	}
	if locker.key != "reminders" {
		t.Errorf("lease key = %q, want the scheduled job's key", locker.key)
	}
	if out.Len() != 0 {
		t.Errorf("expected no report, got %s", out.String())
	}
}
