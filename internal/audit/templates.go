package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/suPer8Hu/voice-audit/internal/jobs"
	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/scoring"
	"github.com/suPer8Hu/voice-audit/internal/speech"
)

type TemplateInput struct {
	Name                     string
	Description              string
	EstimatedDurationMinutes int
	IntroMessage             string
	OutroMessage             string
	DefaultVoice             string
	Active                   *bool
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*models.AuditTemplate, error) {
	t := &models.AuditTemplate{
		Name:                     strings.TrimSpace(in.Name),
		Description:              in.Description,
		EstimatedDurationMinutes: in.EstimatedDurationMinutes,
		IntroMessage:             in.IntroMessage,
		OutroMessage:             in.OutroMessage,
		DefaultVoice:             in.DefaultVoice,
		Active:                   true,
	}
	if in.Active != nil {
		t.Active = *in.Active
	}
	t.ApplyDefaults()
	if err := s.validateTemplate(ctx, t); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) validateTemplate(ctx context.Context, t *models.AuditTemplate) error {
	v := &ValidationError{}
	if err := t.Validate(); err != nil {
		errors.As(err, &v)
	}
	if t.Name != "" {
		taken, err := s.repo.TemplateNameTaken(ctx, t.Name)
		if err != nil {
			return err
		}
		if taken {
			v.Add("name", "has already been taken")
		}
	}
	return v.OrNil()
}

// ImportTemplate creates a template together with its questions.
// It returns created=false without touching anything when the name already exists.
func (s *Service) ImportTemplate(ctx context.Context, t *models.AuditTemplate) (created bool, err error) {
	taken, err := s.repo.TemplateNameTaken(ctx, strings.TrimSpace(t.Name))
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	t.Name = strings.TrimSpace(t.Name)
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return false, err
	}
	seen := make(map[int]bool, len(t.Questions))
	for i := range t.Questions {
		q := &t.Questions[i]
		if q.Sequence == 0 {
			q.Sequence = i + 1
		}
		prepareQuestion(q)
		if err := q.Validate(); err != nil {
			return false, fmt.Errorf("question %d: %w", i+1, err)
		}
		if seen[q.Sequence] {
			return false, fmt.Errorf("question %d: %w", i+1, fieldError("sequence", "has already been taken"))
		}
		seen[q.Sequence] = true
	}

	if err := s.repo.CreateTemplateWithQuestions(ctx, t); err != nil {
		return false, err
	}
	for i := range t.Questions {
		s.queueQuestionAudio(ctx, &t.Questions[i])
	}
	return true, nil
}

func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]models.AuditTemplate, error) {
	return s.repo.ListTemplates(ctx, activeOnly)
}

// GetTemplate loads a template with its questions in sequence order.
func (s *Service) GetTemplate(ctx context.Context, id uint64) (*models.AuditTemplate, error) {
	return s.repo.GetTemplate(ctx, id, true)
}

func (s *Service) CanBeDeleted(ctx context.Context, templateID uint64) (bool, error) {
	n, err := s.repo.CountSessions(ctx, "audit_template_id", templateID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id uint64) error {
	if _, err := s.repo.GetTemplate(ctx, id, false); err != nil {
		return err
	}
	ok, err := s.CanBeDeleted(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTemplateInUse
	}
	return s.repo.DeleteTemplate(ctx, id)
}

type QuestionInput struct {
	Text               string
	SpeechText         string
	Sequence           int
	QuestionType       models.QuestionType
	MaxResponseSeconds int
	ExpectedKeywords   []string
	FollowupPrompts    []string
}

// AddQuestion appends a question to a template. A zero sequence means max(sequence)+1.
func (s *Service) AddQuestion(ctx context.Context, templateID uint64, in QuestionInput) (*models.Question, error) {
	if _, err := s.repo.GetTemplate(ctx, templateID, false); err != nil {
		return nil, err
	}

	q := &models.Question{
		AuditTemplateID:    templateID,
		Text:               strings.TrimSpace(in.Text),
		SpeechText:         strings.TrimSpace(in.SpeechText),
		Sequence:           in.Sequence,
		QuestionType:       in.QuestionType,
		MaxResponseSeconds: in.MaxResponseSeconds,
		ExpectedKeywords:   in.ExpectedKeywords,
		FollowupPrompts:    in.FollowupPrompts,
	}
	if q.Sequence == 0 {
		max, err := s.repo.MaxSequence(ctx, templateID)
		if err != nil {
			return nil, err
		}
		q.Sequence = max + 1
	}
	prepareQuestion(q)

	v := &ValidationError{}
	if err := q.Validate(); err != nil {
		errors.As(err, &v)
	}
	if q.Sequence > 0 {
		taken, err := s.repo.SequenceTaken(ctx, templateID, q.Sequence)
		if err != nil {
			return nil, err
		}
		if taken {
			v.Add("sequence", "has already been taken")
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}
	s.queueQuestionAudio(ctx, q)
	return q, nil
}

// prepareQuestion fills defaults and derives the spoken text when none was given.
func prepareQuestion(q *models.Question) {
	q.ApplyDefaults()
	if q.SpeechText == "" {
		q.SpeechText = speech.OptimizeText(q.Text)
	}
	if q.ExpectedKeywords == nil {
		q.ExpectedKeywords = []string{}
	}
	if q.FollowupPrompts == nil {
		q.FollowupPrompts = []string{}
	}
}

func (s *Service) queueQuestionAudio(ctx context.Context, q *models.Question) {
	if !s.generateQuestionAudio {
		return
	}
	if _, err := s.enqueue(ctx, jobs.KindSynthesize, q.ID, fmt.Sprintf("synthesize:%d", q.ID)); err != nil {
		log.Printf("[Audit] enqueue synthesis failed question_id=%d err=%v", q.ID, err)
	}
}

// QuestionView is a question as presented to a respondent.
type QuestionView struct {
	models.Question
	SpeechOptimizedText    string  `json:"speech_optimized_text"`
	ExpectedResponseFormat string  `json:"expected_response_format"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	HasAudio               bool    `json:"has_audio"`
}

func NewQuestionView(q *models.Question) *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		Question:               *q,
		SpeechOptimizedText:    SpeechOptimizedText(q),
		ExpectedResponseFormat: q.ExpectedResponseFormat(),
		AudioDurationSeconds:   AudioDuration(q),
		HasAudio:               q.HasAudio(),
	}
}

// SpeechOptimizedText returns the stored speech text as is, or derives it from the display text.
func SpeechOptimizedText(q *models.Question) string {
	if strings.TrimSpace(q.SpeechText) != "" {
		return q.SpeechText
	}
	return speech.OptimizeText(q.Text)
}

// AudioDuration estimates playback length of the synthesized question, 0 without audio.
func AudioDuration(q *models.Question) float64 {
	if !q.HasAudio() {
		return 0
	}
	return speech.EstimatedPlaybackSeconds(SpeechOptimizedText(q))
}

type TemplateStats struct {
	TotalQuestions           int     `json:"total_questions"`
	TotalSessions            int64   `json:"total_sessions"`
	CompletedSessions        int64   `json:"completed_sessions"`
	CompletionRate           float64 `json:"completion_rate"`
	AverageCompletionMinutes float64 `json:"average_completion_minutes"`
}

func (s *Service) TemplateStats(ctx context.Context, templateID uint64) (*TemplateStats, error) {
	t, err := s.repo.GetTemplate(ctx, templateID, false)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountQuestions(ctx, templateID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.repo.CountSessions(ctx, "audit_template_id", templateID)
	if err != nil {
		return nil, err
	}
	completedCount, err := s.repo.CountSessions(ctx, "audit_template_id", templateID, models.SessionCompleted)
	if err != nil {
		return nil, err
	}
	completed, err := s.repo.CompletedSessions(ctx, "audit_template_id", templateID)
	if err != nil {
		return nil, err
	}

	avg := float64(t.EstimatedDurationMinutes)
	if len(completed) > 0 {
		avg = averageMinutes(completed)
	}
	return &TemplateStats{
		TotalQuestions:           total,
		TotalSessions:            sessions,
		CompletedSessions:        completedCount,
		CompletionRate:           scoring.Percent(int(completedCount), int(sessions)),
		AverageCompletionMinutes: avg,
	}, nil
}
