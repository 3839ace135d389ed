package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LEADS_REPOSITORY", "")
	t.Setenv("POLICY_CACHE_TTL", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.Repository != "postgres" {
		t.Fatalf("expected default repository, got %s", cfg.Repository)
	}
	if cfg.PolicyCacheTTL != 30*time.Second {
		t.Fatalf("expected default policy cache ttl, got %s", cfg.PolicyCacheTTL)
	}
	if cfg.EmailProvider != "stub" {
		t.Fatalf("expected stub email provider by default, got %s", cfg.EmailProvider)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LEADS_REPOSITORY", "DynamoDB")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("POLICY_CACHE_TTL", "2m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("INTAKE_RATE_PER_SECOND", "0.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Repository != "dynamodb" {
		t.Fatalf("expected normalized repository, got %s", cfg.Repository)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.PolicyCacheTTL != 2*time.Minute {
		t.Fatalf("expected ttl override, got %s", cfg.PolicyCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("expected parsed CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.IntakeRatePerSecond != 0.5 {
		t.Fatalf("expected rate override, got %f", cfg.IntakeRatePerSecond)
	}
}
