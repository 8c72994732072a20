// Package app wires the services shared by the server, the worker and auditctl.
package app

import (
	"log"
	"strings"

	"github.com/suPer8Hu/voice-audit/internal/ai"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/config"
	"github.com/suPer8Hu/voice-audit/internal/insight"
	"github.com/suPer8Hu/voice-audit/internal/jobs"
	"github.com/suPer8Hu/voice-audit/internal/observe"
	"github.com/suPer8Hu/voice-audit/internal/speech"
	"gorm.io/gorm"
)

type Options struct {
	// Publisher may be nil; jobs then stay queued until a worker republishes them.
	Publisher jobs.Publisher
	Cache     insight.Cache
	Metrics   *observe.Metrics
}

type App struct {
	Cfg      config.Config
	DB       *gorm.DB
	JobsRepo *jobs.Repo
	Jobs     *jobs.Dispatcher
	Audit    *audit.Service
	Insights *insight.Service
	Metrics  *observe.Metrics
}

func New(cfg config.Config, gdb *gorm.DB, opts Options) (*App, error) {
	jobsRepo := jobs.NewRepo(gdb)
	dispatcher := jobs.NewDispatcher(jobsRepo, opts.Publisher)

	insightOpts := insight.Options{
		Jobs:     dispatcher,
		Cache:    opts.Cache,
		CacheTTL: cfg.ReportCacheTTL,
		Metrics:  opts.Metrics,
	}
	if n := narrator(cfg); n != nil {
		insightOpts.Narrator = n
	}
	insights := insight.NewService(insight.NewRepo(gdb), insightOpts)

	store, err := speech.NewAudioStore(cfg.AudioDir)
	if err != nil {
		return nil, err
	}
	auditOpts := audit.Options{
		Insights:              insights,
		Reports:               insights,
		Jobs:                  dispatcher,
		Audio:                 store,
		Metrics:               opts.Metrics,
		GenerateQuestionAudio: cfg.GenerateQuestionAudio,
	}
	if cfg.SpeechBaseURL != "" {
		client := speech.NewHTTPClient(cfg.SpeechBaseURL, cfg.SpeechAPIKey)
		auditOpts.Transcriber = client
		auditOpts.Synthesizer = client
	} else {
		log.Printf("[App] SPEECH_BASE_URL not set, transcription and synthesis disabled")
	}

	return &App{
		Cfg:      cfg,
		DB:       gdb,
		JobsRepo: jobsRepo,
		Jobs:     dispatcher,
		Audit:    audit.NewService(audit.NewRepo(gdb), auditOpts),
		Insights: insights,
		Metrics:  opts.Metrics,
	}, nil
}

func narrator(cfg config.Config) *ai.Narrator {
	if !cfg.AISummaryEnabled {
		return nil
	}
	reg := ai.NewBuiltinRegistry(ai.BuiltinConfig{
		OllamaBaseURL:     cfg.OllamaBaseURL,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterSiteURL: cfg.OpenRouterSiteURL,
		OpenRouterAppName: cfg.OpenRouterAppName,
	})

	provider := strings.ToLower(cfg.AIProvider)
	model := cfg.OllamaModel
	if provider == "openrouter" {
		model = cfg.OpenRouterModel
	}
	log.Printf("[App] insight narration enabled provider=%s model=%s", provider, model)
	return ai.NewNarrator(reg, provider, model)
}
