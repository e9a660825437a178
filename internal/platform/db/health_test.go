package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type fakeRow struct {
	version int
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.version
	return nil
}

type fakeProber struct {
	pingErr error
	row     fakeRow
}

func (f fakeProber) Ping(context.Context) error { return f.pingErr }

func (f fakeProber) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }

func callHealth(t *testing.T, p Prober) (int, Health) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	stats := func() *PoolStats { return &PoolStats{TotalConns: 2, MaxConns: 20} }
	if err := healthHandler(p, stats)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body Health
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthHandler(t *testing.T) {
	refused := errors.New("dial tcp: connection refused")
	tests := []struct {
		name    string
		prober  fakeProber
		code    int
		status  string
		version int
	}{
		{"healthy", fakeProber{row: fakeRow{version: 3}}, http.StatusOK, "healthy", 3},
		{"unreachable", fakeProber{pingErr: refused}, http.StatusServiceUnavailable, "unhealthy", 0},
		{"no migrations table", fakeProber{row: fakeRow{err: errors.New("relation does not exist")}}, http.StatusServiceUnavailable, "unmigrated", 0},
		{"empty migrations table", fakeProber{}, http.StatusServiceUnavailable, "unmigrated", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := callHealth(t, tt.prober)
			if code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, code)
			}
			if body.Status != tt.status || body.SchemaVersion != tt.version {
				t.Errorf("unexpected body %+v", body)
			}
			if body.Success != (tt.code == http.StatusOK) {
				t.Errorf("success = %v for status %d", body.Success, tt.code)
			}
			if body.Pool == nil || body.Pool.MaxConns != 20 {
				t.Errorf("expected pool stats, got %+v", body.Pool)
			}
		})
	}
}
