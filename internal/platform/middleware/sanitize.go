package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

const maxHeaderValueSize = 8192

var (
	// logged only; every query goes through bind parameters
	sqlPatterns = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)

	scriptPatterns = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize rejects requests carrying path traversal, null bytes, header
// injection or script payloads in query parameters. Suspicious SQL in a
// query parameter is only logged.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if err := checkPath(req.URL.Path, req.URL.RawPath); err != nil {
				return err
			}
			if err := checkHeaders(req.Header); err != nil {
				return err
			}
			for key, values := range req.URL.Query() {
				for _, v := range values {
					if err := checkQueryParam(key, v); err != nil {
						return err
					}
					if sqlPatterns.MatchString(v) {
						logger.Warn().
							Str("param", key).
							Str("path", req.URL.Path).
							Str("remote_ip", c.RealIP()).
							Msg("suspicious SQL pattern in query parameter")
					}
				}
			}
			return next(c)
		}
	}
}

func checkPath(path, raw string) error {
	for _, p := range []string{path, raw} {
		if containsPathTraversal(p) {
			return apperr.Validation("path traversal detected")
		}
		if containsNullByte(p) {
			return apperr.Validation("null byte in path")
		}
	}
	return nil
}

func checkHeaders(h http.Header) error {
	for name, values := range h {
		for _, v := range values {
			switch {
			case len(v) > maxHeaderValueSize:
				return apperr.Validation("header value too large: " + name)
			case strings.ContainsAny(v, "\r\n"):
				return apperr.Validation("header injection detected: " + name)
			}
		}
	}
	return nil
}

func checkQueryParam(key, value string) error {
	if containsNullByte(key) || containsNullByte(value) {
		return apperr.Validation("null byte in query parameter")
	}
	if scriptPatterns.MatchString(key) || scriptPatterns.MatchString(value) {
		return apperr.Validation("script content in query parameter")
	}
	return nil
}

func containsPathTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func containsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}

// CleanString strips null bytes and control characters other than \n, \r
// and \t, then trims surrounding whitespace. Services apply it to free-text
// fields before storing them.
func CleanString(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
