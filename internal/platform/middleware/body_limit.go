package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
)

const defaultBodyLimit = "2M"

// BodyLimit rejects request bodies larger than limit ("2M", "512K", bare
// bytes) with a 413. Bodies are checked by Content-Length and again while
// they are read. A limit that does not parse falls back to 2M.
func BodyLimit(limit string) echo.MiddlewareFunc {
	return echomw.BodyLimit(normalizeLimit(limit))
}

func normalizeLimit(limit string) string {
	if n, err := bytes.Parse(limit); err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return limit
}
