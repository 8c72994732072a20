package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/scoring"
)

const (
	tokenBytes    = 32
	tokenAttempts = 5

	// IdleAbandonAfter is the inactivity after which a running session counts as abandoned.
	IdleAbandonAfter = time.Hour
	// DefaultSweepThreshold is the updated_at age the sweep abandons sessions at.
	DefaultSweepThreshold = 24 * time.Hour

	sweepBatch = 200
)

type StartInput struct {
	TemplateID uint64
	UserID     *uint64
	Voice      string
}

func (s *Service) StartSession(ctx context.Context, in StartInput) (*models.AuditSession, error) {
	t, err := s.repo.GetTemplate(ctx, in.TemplateID, false)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, ErrTemplateInactive
	}

	var user *models.User
	if in.UserID != nil {
		if user, err = s.repo.GetUser(ctx, *in.UserID); err != nil {
			return nil, err
		}
	}

	token, err := s.newSessionToken(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &models.AuditSession{
		UserID:          in.UserID,
		AuditTemplateID: t.ID,
		Status:          models.SessionStarted,
		StartedAt:       &now,
		SessionToken:    token,
		PreferredVoice:  pickVoice(in.Voice, user, t),
		SpeechEnabled:   true,
	}
	if user != nil {
		sess.SpeechEnabled = user.SpeechEnabled
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.metrics.SessionStarted(ctx, t.ID)
	log.Printf("[Audit] session started session_id=%d template_id=%d anonymous=%t", sess.ID, t.ID, sess.Anonymous())
	if err := s.completeIfEmpty(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// completeIfEmpty completes a session whose template has no questions, since
// nothing could ever advance it.
func (s *Service) completeIfEmpty(ctx context.Context, sess *models.AuditSession) error {
	total, err := s.repo.CountQuestions(ctx, sess.AuditTemplateID)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}
	return s.complete(ctx, sess, 0)
}

func pickVoice(explicit string, user *models.User, t *models.AuditTemplate) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if user != nil && user.PreferredVoice != "" {
		return user.PreferredVoice
	}
	if t.DefaultVoice != "" {
		return t.DefaultVoice
	}
	return models.DefaultVoice
}

func (s *Service) newSessionToken(ctx context.Context) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		token, err := common.NewToken(tokenBytes)
		if err != nil {
			return "", err
		}
		exists, err := s.repo.TokenExists(ctx, token)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique session token after %d attempts", tokenAttempts)
}

// SessionForActor loads a session by token. Sessions owned by a user are only visible
// to that user; a mismatch is reported as not found.
func (s *Service) SessionForActor(ctx context.Context, token string, actor *uint64) (*models.AuditSession, error) {
	sess, err := s.repo.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.UserID != nil && (actor == nil || *actor != *sess.UserID) {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id uint64) (*models.AuditSession, error) {
	return s.repo.GetSession(ctx, id)
}

// Progress is the derived state of a session shown alongside it.
type Progress struct {
	TotalQuestions     int     `json:"total_questions"`
	ResponsesCount     int     `json:"responses_count"`
	ProgressPercentage float64 `json:"progress_percentage"`
	QuestionsRemaining int     `json:"questions_remaining"`
	DurationMinutes    float64 `json:"duration_minutes"`
	CompletionRate     float64 `json:"completion_rate"`
	CanAdvance         bool    `json:"can_advance"`
	ShouldBeAbandoned  bool    `json:"should_be_abandoned"`
}

func (s *Service) Progress(ctx context.Context, sess *models.AuditSession) (*Progress, error) {
	total, err := s.repo.CountQuestions(ctx, sess.AuditTemplateID)
	if err != nil {
		return nil, err
	}
	answered, err := s.repo.CountResponses(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	idle, err := s.ShouldBeAbandoned(ctx, sess)
	if err != nil {
		return nil, err
	}
	remaining := total - sess.CurrentQuestionIndex
	if remaining < 0 {
		remaining = 0
	}
	return &Progress{
		TotalQuestions:     total,
		ResponsesCount:     answered,
		ProgressPercentage: scoring.Percent(sess.CurrentQuestionIndex, total),
		QuestionsRemaining: remaining,
		DurationMinutes:    scoring.Round1(sess.DurationMinutes(s.now())),
		CompletionRate:     scoring.Percent(answered, total),
		CanAdvance:         sess.CanBeResumed() && sess.CurrentQuestionIndex < total,
		ShouldBeAbandoned:  idle,
	}, nil
}

// CurrentQuestion returns the question at sequence index+1, or nil past the end.
func (s *Service) CurrentQuestion(ctx context.Context, sess *models.AuditSession) (*models.Question, error) {
	return s.optionalQuestion(s.repo.QuestionWhere(ctx, sess.AuditTemplateID, false, "sequence = ?", sess.CurrentQuestionIndex+1))
}

func (s *Service) NextQuestion(ctx context.Context, sess *models.AuditSession) (*models.Question, error) {
	return s.optionalQuestion(s.repo.QuestionWhere(ctx, sess.AuditTemplateID, false, "sequence > ?", sess.CurrentQuestionIndex))
}

func (s *Service) PreviousQuestion(ctx context.Context, sess *models.AuditSession) (*models.Question, error) {
	if sess.CurrentQuestionIndex <= 0 {
		return nil, nil
	}
	return s.optionalQuestion(s.repo.QuestionWhere(ctx, sess.AuditTemplateID, false, "sequence = ?", sess.CurrentQuestionIndex))
}

// QuestionAfter and QuestionBefore walk a template's questions by sequence.
func (s *Service) QuestionAfter(ctx context.Context, q *models.Question) (*models.Question, error) {
	return s.optionalQuestion(s.repo.QuestionWhere(ctx, q.AuditTemplateID, false, "sequence > ?", q.Sequence))
}

func (s *Service) QuestionBefore(ctx context.Context, q *models.Question) (*models.Question, error) {
	return s.optionalQuestion(s.repo.QuestionWhere(ctx, q.AuditTemplateID, true, "sequence < ?", q.Sequence))
}

func (s *Service) optionalQuestion(q *models.Question, err error) (*models.Question, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return q, err
}

// Advance moves the session to the next question and completes it after the last one.
// It returns false when the session is already past the last question.
func (s *Service) Advance(ctx context.Context, sess *models.AuditSession) (bool, error) {
	if !sess.CanBeResumed() {
		return false, ErrInvalidTransition
	}
	total, err := s.repo.CountQuestions(ctx, sess.AuditTemplateID)
	if err != nil {
		return false, err
	}
	if sess.CurrentQuestionIndex >= total {
		return false, nil
	}

	sess.CurrentQuestionIndex++
	if sess.Status == models.SessionStarted {
		sess.Status = models.SessionInProgress
	}
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return false, err
	}

	if sess.CurrentQuestionIndex >= total {
		if err := s.complete(ctx, sess, total); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Complete finishes a session whose index has reached the question count.
func (s *Service) Complete(ctx context.Context, sess *models.AuditSession) error {
	total, err := s.repo.CountQuestions(ctx, sess.AuditTemplateID)
	if err != nil {
		return err
	}
	return s.complete(ctx, sess, total)
}

func (s *Service) complete(ctx context.Context, sess *models.AuditSession, total int) error {
	if !sess.CanBeResumed() || sess.CurrentQuestionIndex != total {
		return ErrInvalidTransition
	}

	now := s.now()
	sess.Status = models.SessionCompleted
	sess.CompletedAt = &now
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return err
	}
	if sess.UserID != nil {
		if err := s.repo.TouchUserLastAudit(ctx, *sess.UserID, now); err != nil {
			log.Printf("[Audit] update last_audit_at failed user_id=%d err=%v", *sess.UserID, err)
		}
	}
	s.metrics.SessionCompleted(ctx, sess.AuditTemplateID)
	log.Printf("[Audit] session completed session_id=%d duration_min=%.1f", sess.ID, sess.DurationMinutes(now))

	if s.insights != nil {
		if _, err := s.insights.GenerateForSession(ctx, sess.ID); err != nil {
			log.Printf("[Audit] insight generation failed session_id=%d err=%v", sess.ID, err)
		}
	}
	return nil
}

func (s *Service) Abandon(ctx context.Context, sess *models.AuditSession) error {
	if !sess.CanBeResumed() {
		return ErrInvalidTransition
	}
	sess.Status = models.SessionAbandoned
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return err
	}
	s.metrics.SessionAbandoned(ctx, sess.AuditTemplateID)
	return nil
}

// Restart resets a session to its first question and drops its responses and insight.
func (s *Service) Restart(ctx context.Context, sess *models.AuditSession) error {
	now := s.now()
	sess.Status = models.SessionStarted
	sess.CurrentQuestionIndex = 0
	sess.StartedAt = &now
	sess.CompletedAt = nil
	if err := s.repo.RestartSession(ctx, sess); err != nil {
		return err
	}
	s.metrics.SessionStarted(ctx, sess.AuditTemplateID)
	return s.completeIfEmpty(ctx, sess)
}

// ShouldBeAbandoned reports whether a running session has been idle for over an hour.
// Activity is the later of the latest response and the session's own update.
func (s *Service) ShouldBeAbandoned(ctx context.Context, sess *models.AuditSession) (bool, error) {
	if !sess.CanBeResumed() {
		return false, nil
	}
	last := sess.UpdatedAt
	latest, err := s.repo.LatestRespondedAt(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.After(last) {
		last = *latest
	}
	if last.IsZero() {
		return false, nil
	}
	return s.now().Sub(last) > IdleAbandonAfter, nil
}

// SweepAbandoned abandons started/in_progress sessions not updated within threshold.
func (s *Service) SweepAbandoned(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = DefaultSweepThreshold
	}
	cutoff := s.now().Add(-threshold)

	n := 0
	for {
		stale, err := s.repo.StaleSessions(ctx, cutoff, sweepBatch)
		if err != nil {
			return n, err
		}
		for i := range stale {
			if err := s.Abandon(ctx, &stale[i]); err != nil {
				return n, fmt.Errorf("abandon session %d: %w", stale[i].ID, err)
			}
			n++
		}
		if len(stale) < sweepBatch {
			break
		}
	}
	if n > 0 {
		log.Printf("[Audit] sweep abandoned=%d threshold=%s", n, threshold)
	}
	return n, nil
}
