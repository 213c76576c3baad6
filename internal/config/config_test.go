package config

import (
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.NativePreviewBasis != "pre" {
		t.Fatalf("unexpected basis %q", cfg.NativePreviewBasis)
	}
	if cfg.JWTSecret == "" {
		t.Fatal("expected a development jwt secret")
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "s3cret")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail")
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "90")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("unexpected shutdown period %s", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != 90*time.Second {
		t.Fatalf("unexpected idempotency ttl %s", cfg.IdempotencyTTL)
	}
	if cfg.RateLimitPerMinute != 5 {
		t.Fatalf("unexpected rate limit %d", cfg.RateLimitPerMinute)
	}

	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid rate limit to fail")
	}
}
