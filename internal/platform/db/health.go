package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the JSON view of pgxpool statistics served by /health/db.
type PoolStats struct {
	TotalConns        int32  `json:"total_conns"`
	IdleConns         int32  `json:"idle_conns"`
	AcquiredConns     int32  `json:"acquired_conns"`
	MaxConns          int32  `json:"max_conns"`
	AcquireCount      int64  `json:"acquire_count"`
	EmptyAcquireCount int64  `json:"empty_acquire_count"`
	AcquireDuration   string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:        stat.TotalConns(),
		IdleConns:         stat.IdleConns(),
		AcquiredConns:     stat.AcquiredConns(),
		MaxConns:          stat.MaxConns(),
		AcquireCount:      stat.AcquireCount(),
		EmptyAcquireCount: stat.EmptyAcquireCount(),
		AcquireDuration:   stat.AcquireDuration().String(),
	}
}

// Health is the /health/db response body.
type Health struct {
	Success       bool       `json:"success"`
	Status        string     `json:"status"`
	SchemaVersion int        `json:"schema_version"`
	Pool          *PoolStats `json:"pool"`
}

// Prober is the part of *pgxpool.Pool the health check needs.
type Prober interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// HealthHandler pings the database and reports the applied schema version
// and pool statistics. Database errors are not echoed to the client.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pool, func() *PoolStats { return GetPoolStats(pool) })
}

func healthHandler(p Prober, stats func() *PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		h := Health{Status: "unhealthy", Pool: stats()}
		if err := p.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		// a database that was never migrated is reachable but not ready
		err := p.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&h.SchemaVersion)
		if err != nil || h.SchemaVersion == 0 {
			h.Status = "unmigrated"
			return c.JSON(http.StatusServiceUnavailable, h)
		}

		h.Success = true
		h.Status = "healthy"
		return c.JSON(http.StatusOK, h)
	}
}
