package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "DB_DSN", "WORKER_CONCURRENCY", "ABANDON_AFTER", "RABBIT_QUEUE", "GENERATE_QUESTION_AUDIO"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.DBDriver != "mysql" || !strings.Contains(cfg.DBDSN, "voice_audit") {
		t.Fatalf("unexpected db config: %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.AbandonAfter != 24*time.Hour {
		t.Fatalf("unexpected abandon threshold %s", cfg.AbandonAfter)
	}
	if cfg.WorkerConcurrency != 2 || cfg.RabbitQueue != "audit_jobs" {
		t.Fatalf("unexpected worker config: %d %s", cfg.WorkerConcurrency, cfg.RabbitQueue)
	}
	if cfg.GenerateQuestionAudio {
		t.Fatalf("question audio should be off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("ABANDON_AFTER", "90m")
	t.Setenv("GENERATE_QUESTION_AUDIO", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.DBDriver != "sqlite" || !strings.HasPrefix(cfg.DBDSN, "file:") {
		t.Fatalf("unexpected db config: %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.WorkerConcurrency != 50 {
		t.Fatalf("expected concurrency capped at 50, got %d", cfg.WorkerConcurrency)
	}
	if cfg.AbandonAfter != 90*time.Minute {
		t.Fatalf("unexpected abandon threshold %s", cfg.AbandonAfter)
	}
	if !cfg.GenerateQuestionAudio {
		t.Fatalf("expected question audio enabled")
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("invalid REDIS_DB should fall back to 0, got %d", cfg.RedisDB)
	}
}
