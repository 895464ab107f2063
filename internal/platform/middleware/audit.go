package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/nidohq/nido/internal/platform/auth"
)

// AuditEntry captures who changed what, when and from where. Family
// members share full access to their group's data, so the trail is the
// only record of which member performed a mutation.
type AuditEntry struct {
	UserID      string
	FamilyGroup string
	Resource    string
	Action      string // create, update, delete
	Path        string
	Method      string
	IPAddress   string
	RequestID   string
	StatusCode  int
	Timestamp   time.Time
}

// AuditRecorder persists audit entries. Tests provide mock implementations.
type AuditRecorder interface {
	RecordMutation(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordMutation(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that logs every write under /api/v1/. Reads
// are not audited; the advisory created_by field plus this trail covers
// the "any member may mutate any occurrence" model.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !strings.HasPrefix(path, "/api/v1/") || req.Method == http.MethodGet || req.Method == http.MethodHead {
				return next(c)
			}

			// Run the handler first so the response status is known.
			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				StatusCode: c.Response().Status,
				Action:     methodToAction(req.Method),
				Resource:   resourceFromPath(path),
				UserID:     auth.UserIDFromContext(req.Context()),
			}
			if family, ok := c.Get("family_group").(string); ok {
				entry.FamilyGroup = family
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordMutation(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("family_group", entry.FamilyGroup).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("mutation")

			return err
		}
	}
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "write"
	}
}

// resourceFromPath extracts the first path segment after /api/v1/,
// e.g. /api/v1/occurrences/123 -> occurrences.
func resourceFromPath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}
