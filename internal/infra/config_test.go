package infra

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port: got %q, want %q", cfg.Port, "8080")
	}
	if cfg.WorkerConcurrency != 4 {
		t.Fatalf("concurrency: got %d, want 4", cfg.WorkerConcurrency)
	}
	if cfg.JobMaxAttempts != 3 {
		t.Fatalf("max attempts: got %d, want 3", cfg.JobMaxAttempts)
	}
	if cfg.WatchdogInterval != 30*time.Second {
		t.Fatalf("watchdog interval: got %v, want 30s", cfg.WatchdogInterval)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("storage base url: got %q", cfg.StorageBaseURL)
	}
	if cfg.DefaultLanguage != "en" {
		t.Fatalf("default language: got %q, want %q", cfg.DefaultLanguage, "en")
	}
}

func TestLoadConfigRequiredVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing DATABASE_URL must fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing JWT_SECRET must fail")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKER_CONCURRENCY", "9")
	t.Setenv("WATCHDOG_INTERVAL_SECONDS", "45")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_USE_TLS", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkerConcurrency != 9 {
		t.Fatalf("concurrency: got %d, want 9", cfg.WorkerConcurrency)
	}
	if cfg.WatchdogInterval != 45*time.Second {
		t.Fatalf("watchdog interval: got %v, want 45s", cfg.WatchdogInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example" || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins: got %v", cfg.AllowedOrigins)
	}
	if !cfg.RedisUseTLS {
		t.Fatal("redis tls flag not parsed")
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}
