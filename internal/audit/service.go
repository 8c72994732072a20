// Package audit owns users, templates, questions, the session state machine and
// recorded responses.
package audit

import (
	"context"
	"time"

	"github.com/suPer8Hu/voice-audit/internal/jobs"
	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/observe"
	"github.com/suPer8Hu/voice-audit/internal/speech"
)

// InsightGenerator builds the insight of a completed session.
type InsightGenerator interface {
	GenerateForSession(ctx context.Context, sessionID uint64) (*models.AuditInsight, error)
}

// ReportInvalidator drops cached reports once a session's responses change.
type ReportInvalidator interface {
	InvalidateReport(ctx context.Context, sessionID uint64)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, kind jobs.Kind, targetID uint64, idempotencyKey string) (*jobs.Job, error)
}

type Options struct {
	Insights    InsightGenerator
	Reports     ReportInvalidator
	Jobs        Enqueuer
	Audio       *speech.AudioStore
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Metrics     *observe.Metrics

	// GenerateQuestionAudio enqueues a synthesis job for each new question.
	GenerateQuestionAudio bool
	Now                   func() time.Time
}

type Service struct {
	repo *Repo

	insights    InsightGenerator
	reports     ReportInvalidator
	jobs        Enqueuer
	audio       *speech.AudioStore
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	metrics     *observe.Metrics

	generateQuestionAudio bool
	now                   func() time.Time
}

func NewService(repo *Repo, opts Options) *Service {
	s := &Service{
		repo:                  repo,
		insights:              opts.Insights,
		reports:               opts.Reports,
		jobs:                  opts.Jobs,
		audio:                 opts.Audio,
		transcriber:           opts.Transcriber,
		synthesizer:           opts.Synthesizer,
		metrics:               opts.Metrics,
		generateQuestionAudio: opts.GenerateQuestionAudio,
		now:                   opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.transcriber == nil {
		s.transcriber = speech.Disabled{}
	}
	if s.synthesizer == nil {
		s.synthesizer = speech.Disabled{}
	}
	return s
}

func (s *Service) Repo() *Repo { return s.repo }

func (s *Service) responseChanged(ctx context.Context, resp *models.Response) {
	if s.reports != nil {
		s.reports.InvalidateReport(ctx, resp.AuditSessionID)
	}
}

func (s *Service) enqueue(ctx context.Context, kind jobs.Kind, targetID uint64, key string) (*jobs.Job, error) {
	if s.jobs == nil {
		return nil, nil
	}
	return s.jobs.Enqueue(ctx, kind, targetID, key)
}
