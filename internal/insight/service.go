// Package insight turns a completed audit session into a scored report.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/voice-audit/internal/ai"
	"github.com/suPer8Hu/voice-audit/internal/jobs"
	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/observe"
	"gorm.io/gorm"
)

var ErrSessionNotCompleted = errors.New("session is not completed")

type Enqueuer interface {
	Enqueue(ctx context.Context, kind jobs.Kind, targetID uint64, idempotencyKey string) (*jobs.Job, error)
}

type Narrator interface {
	Narrate(ctx context.Context, facts ai.SummaryFacts) (string, error)
}

// Cache stores rendered reports. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Options struct {
	Jobs     Enqueuer
	Narrator Narrator
	Cache    Cache
	CacheTTL time.Duration
	Metrics  *observe.Metrics
	Now      func() time.Time
}

type Service struct {
	repo     *Repo
	jobs     Enqueuer
	narrator Narrator
	cache    Cache
	cacheTTL time.Duration
	metrics  *observe.Metrics
	now      func() time.Time
}

func NewService(repo *Repo, opts Options) *Service {
	s := &Service{
		repo:     repo,
		jobs:     opts.Jobs,
		narrator: opts.Narrator,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 10 * time.Minute
	}
	return s
}

func reportKey(sessionID uint64) string {
	return fmt.Sprintf("voice-audit:report:session:%d", sessionID)
}

func (s *Service) load(ctx context.Context, sess *models.AuditSession) (*snapshot, error) {
	t, err := s.repo.GetTemplate(ctx, sess.AuditTemplateID)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.ListQuestions(ctx, sess.AuditTemplateID)
	if err != nil {
		return nil, err
	}
	responses, err := s.repo.ListResponses(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return &snapshot{session: sess, template: t, questions: questions, responses: responses, now: s.now()}, nil
}

// GenerateForSession creates the insight of a completed session, or returns the existing one.
// It returns nil without error while the session is still running.
func (s *Service) GenerateForSession(ctx context.Context, sessionID uint64) (*models.AuditInsight, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Completed() {
		return nil, nil
	}
	if existing, err := s.repo.GetBySession(ctx, sessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	d, err := s.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	in := build(d)
	s.narrate(ctx, d, in)

	if err := in.Validate(sess); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, in); err != nil {
		// lost a race with another generator
		if existing, gerr := s.repo.GetBySession(ctx, sessionID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.metrics.InsightCreated(ctx, in.OverallScore, string(in.ConfidenceLevel))
	log.Printf("[Insight] generated session_id=%d score=%.1f confidence=%s risks=%d",
		sessionID, *in.OverallScore, in.ConfidenceLevel, len(in.RiskIndicators))

	if in.HasHighRiskIndicators() && s.jobs != nil {
		if _, err := s.jobs.Enqueue(ctx, jobs.KindNotify, in.ID, fmt.Sprintf("notify:%d", in.ID)); err != nil {
			log.Printf("[Insight] enqueue notify failed insight_id=%d err=%v", in.ID, err)
		}
	}
	s.InvalidateReport(ctx, sessionID)
	return in, nil
}

// narrate replaces the heuristic summary with the narrator's text when one is configured.
func (s *Service) narrate(ctx context.Context, d *snapshot, in *models.AuditInsight) {
	if s.narrator == nil {
		return
	}
	facts := ai.SummaryFacts{
		TemplateName:    d.template.Name,
		Responses:       len(d.responses),
		DurationMinutes: d.durationMinutes(),
		CompletionRate:  d.completionRate(),
		OverallScore:    in.OverallScore,
		FollowUps:       d.requiringClarification(),
		Draft:           in.Summary,
	}
	for _, t := range in.KeyFindings.CommonThemes {
		facts.Themes = append(facts.Themes, t.Theme)
	}
	for _, r := range in.RiskIndicators {
		facts.Risks = append(facts.Risks, r.Description)
	}

	text, err := s.narrator.Narrate(ctx, facts)
	if err != nil {
		log.Printf("[Insight] narration failed session_id=%d err=%v", d.session.ID, err)
		return
	}
	in.Summary = text
}

// ForSession returns the session's insight, generating it on first access.
func (s *Service) ForSession(ctx context.Context, sess *models.AuditSession) (*models.AuditInsight, error) {
	in, err := s.repo.GetBySession(ctx, sess.ID)
	if err == nil {
		return in, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if !sess.Completed() {
		return nil, ErrSessionNotCompleted
	}
	return s.GenerateForSession(ctx, sess.ID)
}

// Report renders the reviewer report of a session, served from the cache when possible.
func (s *Service) Report(ctx context.Context, sess *models.AuditSession) (*Report, error) {
	// a restarted session must not see its previous report
	if !sess.Completed() {
		return nil, ErrSessionNotCompleted
	}
	key := reportKey(sess.ID)
	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, key); err != nil {
			log.Printf("[Insight] report cache get failed key=%s err=%v", key, err)
		} else if ok {
			var r Report
			if err := json.Unmarshal(b, &r); err == nil {
				return &r, nil
			}
		}
	}

	in, err := s.ForSession(ctx, sess)
	if err != nil {
		return nil, err
	}
	d, err := s.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	r := buildReport(in, d)

	if s.cache != nil {
		if b, err := json.Marshal(r); err == nil {
			if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
				log.Printf("[Insight] report cache set failed key=%s err=%v", key, err)
			}
		}
	}
	return r, nil
}

type UpdateInput struct {
	Summary        string
	KeyFindings    models.KeyFindings
	RiskIndicators []models.RiskIndicator
	OverallScore   *float64
}

// UpdateInsights replaces every reviewer-editable field and recomputes the confidence level.
func (s *Service) UpdateInsights(ctx context.Context, sess *models.AuditSession, in UpdateInput) (*models.AuditInsight, error) {
	cur, err := s.ForSession(ctx, sess)
	if err != nil {
		return nil, err
	}

	risks := in.RiskIndicators
	if risks == nil {
		risks = []models.RiskIndicator{}
	}
	cur.Summary = strings.TrimSpace(in.Summary)
	cur.KeyFindings = in.KeyFindings
	cur.RiskIndicators = risks
	cur.OverallScore = in.OverallScore
	cur.ConfidenceLevel = ConfidenceLevel(in.OverallScore, len(risks))

	if err := cur.Validate(sess); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, cur); err != nil {
		return nil, err
	}
	s.InvalidateReport(ctx, sess.ID)
	return cur, nil
}

// NotifyStakeholders handles the notify job of a high-risk insight.
func (s *Service) NotifyStakeholders(ctx context.Context, insightID uint64) error {
	in, err := s.repo.GetByID(ctx, insightID)
	if err != nil {
		return err
	}
	sess, err := s.repo.GetSession(ctx, in.AuditSessionID)
	if err != nil {
		return err
	}
	d, err := s.load(ctx, sess)
	if err != nil {
		return err
	}
	r := buildReport(in, d)

	owner := "anonymous"
	if sess.UserID != nil {
		owner = fmt.Sprintf("user:%d", *sess.UserID)
	}
	log.Printf("[Notify] high-risk audit session_id=%d template=%q owner=%s risk_level=%s high_risks=%d concerns=%q",
		sess.ID, r.TemplateName, owner, r.RiskLevel, r.Risks.HighPriority, strings.Join(r.AreasOfConcern, "; "))
	return nil
}

// InvalidateReport drops the cached report of a session.
func (s *Service) InvalidateReport(ctx context.Context, sessionID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, reportKey(sessionID)); err != nil {
		log.Printf("[Insight] report cache invalidate failed session_id=%d err=%v", sessionID, err)
	}
}
