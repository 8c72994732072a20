package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string

	DBDriver      string
	DBDSN         string
	JWTSecret     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// speech service
	SpeechBaseURL         string
	SpeechAPIKey          string
	AudioDir              string
	GenerateQuestionAudio bool
	MaxUploadBytes        int64

	// session lifecycle
	AbandonAfter   time.Duration
	SweepInterval  time.Duration
	ReportCacheTTL time.Duration

	// AI narration of insight summaries
	AISummaryEnabled  bool
	AIProvider        string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
}

func Load() Config {
	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/voice_audit?charset=utf8mb4&parseTime=true&loc=Local
	driver := strings.ToLower(getenv("DB_DRIVER", "mysql"))
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		if driver == "sqlite" {
			dsn = "file:voice_audit.db?_pragma=foreign_keys(1)"
		} else {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
				"app", "apppass", "127.0.0.1", "3306", "voice_audit",
			)
		}
	}

	concurrency := getint("WORKER_CONCURRENCY", 2)
	if concurrency <= 0 {
		concurrency = 2
	}
	if concurrency > 50 {
		concurrency = 50
	}

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),

		DBDriver:  driver,
		DBDSN:     dsn,
		JWTSecret: getenv("JWT_SECRET", "dev-secret-change-me"),

		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		SpeechBaseURL:         os.Getenv("SPEECH_BASE_URL"),
		SpeechAPIKey:          os.Getenv("SPEECH_API_KEY"),
		AudioDir:              getenv("AUDIO_DIR", "./data/audio"),
		GenerateQuestionAudio: getbool("GENERATE_QUESTION_AUDIO", false),
		MaxUploadBytes:        int64(getint("MAX_UPLOAD_BYTES", 25<<20)),

		AbandonAfter:   getduration("ABANDON_AFTER", 24*time.Hour),
		SweepInterval:  getduration("SWEEP_INTERVAL", 15*time.Minute),
		ReportCacheTTL: getduration("REPORT_CACHE_TTL", 10*time.Minute),

		AISummaryEnabled:  getbool("AI_SUMMARY_ENABLED", false),
		AIProvider:        getenv("AI_PROVIDER", "ollama"),
		OllamaBaseURL:     getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getenv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getenv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getenv("RABBIT_QUEUE", "audit_jobs"),
		WorkerConcurrency: concurrency,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
