package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/nido_test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.SeriesMaxOccurrences != 1000 {
		t.Errorf("expected default series cap 1000, got %d", cfg.SeriesMaxOccurrences)
	}
	if cfg.DefaultLeadHours != 1 {
		t.Errorf("expected default lead hours 1, got %d", cfg.DefaultLeadHours)
	}
	if cfg.DefaultFamily != "default" {
		t.Errorf("expected default family 'default', got %s", cfg.DefaultFamily)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestValidate_ProductionRequiresIssuer(t *testing.T) {
	cfg := &Config{Env: "production", SeriesMaxOccurrences: 1000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when AUTH_ISSUER is empty in production")
	}
	cfg.AuthIssuer = "https://auth.example.com/realms/nido"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SeriesCap(t *testing.T) {
	cfg := &Config{Env: "development", SeriesMaxOccurrences: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive series cap")
	}
	cfg.SeriesMaxOccurrences = 500
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NegativeLeadHours(t *testing.T) {
	cfg := &Config{Env: "development", SeriesMaxOccurrences: 1000, DefaultLeadHours: -2}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative default lead hours")
	}
}
