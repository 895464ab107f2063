package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestAudit_RecordsMutation(t *testing.T) {
	e := echo.New()
	logger := zerolog.New(os.Stderr)

	var recorded []AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		recorded = append(recorded, entry)
		return nil
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/occurrences/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("family_group", "rossi")
	c.Set("request_id", "rid-1")

	h := Audit(logger, recorder)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recorded) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorded))
	}
	entry := recorded[0]
	if entry.Action != "delete" {
		t.Errorf("expected action delete, got %q", entry.Action)
	}
	if entry.Resource != "occurrences" {
		t.Errorf("expected resource occurrences, got %q", entry.Resource)
	}
	if entry.FamilyGroup != "rossi" {
		t.Errorf("expected family group rossi, got %q", entry.FamilyGroup)
	}
	if entry.StatusCode != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", entry.StatusCode)
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	e := echo.New()
	logger := zerolog.New(os.Stderr)

	var recorded []AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		recorded = append(recorded, entry)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/occurrences", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Audit(logger, recorder)(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorded) != 0 {
		t.Fatalf("expected reads to be skipped, got %d entries", len(recorded))
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	e := echo.New()
	logger := zerolog.New(os.Stderr)

	var recorded []AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		recorded = append(recorded, entry)
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Audit(logger, recorder)(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorded) != 0 {
		t.Fatalf("expected non-API paths to be skipped, got %d entries", len(recorded))
	}
}

func TestResourceFromPath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/occurrences/123": "occurrences",
		"/api/v1/stock":           "stock",
		"/api/v1/":                "unknown",
	}
	for path, want := range cases {
		if got := resourceFromPath(path); got != want {
			t.Errorf("resourceFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
