package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/platform/auth"
)

// AuditEntry records who touched which resource under /api/.
type AuditEntry struct {
	UserID       string
	Role         string
	DoctorID     string
	ResourceType string
	ResourceID   string
	PatientID    string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

const apiPrefix = "/api/"

// Audit emits one structured "access" line per /api/ request after the
// handler ran. Auth routes are audited too, without a user.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c, err)
			evt := logger.Info()
			if entry.StatusCode == http.StatusForbidden || entry.StatusCode == http.StatusUnauthorized {
				evt = logger.Warn()
			}
			evt.
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("doctor_id", entry.DoctorID).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("access")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context, err error) AuditEntry {
	req := c.Request()
	entry := AuditEntry{
		Timestamp:  time.Now().UTC(),
		Path:       req.URL.Path,
		Method:     req.Method,
		IPAddress:  c.RealIP(),
		UserAgent:  req.UserAgent(),
		StatusCode: c.Response().Status,
		Action:     httpMethodToAction(req.Method),
	}
	if err != nil {
		entry.StatusCode = statusOf(err)
	}
	if rid, ok := c.Get("request_id").(string); ok {
		entry.RequestID = rid
	}
	if s, ok := auth.SessionFromContext(req.Context()); ok {
		entry.UserID = s.UserID.String()
		entry.Role = string(s.Role)
		entry.DoctorID = s.DoctorID.String()
	}

	entry.ResourceType, entry.ResourceID = splitResource(req.URL.Path)
	entry.PatientID = extractPatientID(c, entry.ResourceType, entry.ResourceID)
	return entry
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResource parses /api/<resource>[/<id>...]:
//
//	/api/patients            -> patients, ""
//	/api/patients/<uuid>     -> patients, <uuid>
//	/api/appointments/<uuid>/cancel -> appointments, <uuid>
func splitResource(path string) (string, string) {
	segments := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	if len(segments) > 1 && isUUID(segments[1]) {
		return segments[0], segments[1]
	}
	return segments[0], ""
}

func extractPatientID(c echo.Context, resourceType, resourceID string) string {
	if resourceType == "patients" && resourceID != "" {
		return resourceID
	}
	if p := c.QueryParam("patient_id"); isUUID(p) {
		return p
	}
	return ""
}

func isUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
