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

type RecordInput struct {
	QuestionID uint64
	Text       string
	Confidence *float64
	Analysis   map[string]any

	Audio                []byte
	AudioExt             string
	AudioDurationSeconds *int
}

// RecordResponse stores the answer to one question of a running session.
// Text with a confidence is processed right away; audio is stored and queued for transcription.
func (s *Service) RecordResponse(ctx context.Context, sess *models.AuditSession, in RecordInput) (*models.Response, error) {
	if !sess.CanBeResumed() {
		return nil, ErrInvalidTransition
	}
	q, err := s.repo.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return nil, err
	}
	if q.AuditTemplateID != sess.AuditTemplateID {
		return nil, ErrNotFound
	}

	if _, err := s.repo.ResponseFor(ctx, sess.ID, q.ID); err == nil {
		return nil, fieldError("question_id", "has already been answered in this session")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	resp := &models.Response{
		AuditSessionID:               sess.ID,
		QuestionID:                   q.ID,
		TranscriptionStatus:          models.TranscriptionPending,
		OriginalAudioDurationSeconds: in.AudioDurationSeconds,
	}
	text := strings.TrimSpace(in.Text)
	hasAudio := len(in.Audio) > 0
	if text != "" {
		now := s.now()
		resp.TranscribedText = text
		resp.RespondedAt = &now
	}

	if hasAudio {
		if s.audio == nil {
			return nil, ErrAudioDisabled
		}
		if d := in.AudioDurationSeconds; d == nil || *d <= 0 {
			return nil, fieldError("original_audio_duration_seconds", "must be greater than 0")
		}
		stored, err := s.audio.Save(ctx, "responses", in.Audio, in.AudioExt)
		if err != nil {
			return nil, fmt.Errorf("store audio: %w", err)
		}
		resp.AudioPath = stored.Path
		resp.AudioHash = stored.Hash
		resp.AudioSize = stored.Size
		resp.TranscriptionStatus = models.TranscriptionProcessing
	}

	if err := resp.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateResponse(ctx, resp); err != nil {
		return nil, err
	}

	source := "text"
	if hasAudio {
		source = "audio"
	}
	s.metrics.ResponseRecorded(ctx, source)

	switch {
	case hasAudio:
		if _, err := s.enqueue(ctx, jobs.KindTranscribe, resp.ID, ""); err != nil {
			log.Printf("[Audit] enqueue transcription failed response_id=%d err=%v", resp.ID, err)
		}
	case text != "" && in.Confidence != nil:
		return s.processTranscription(ctx, resp, sess, TranscriptionResult{
			Text:       text,
			Confidence: in.Confidence,
			Analysis:   in.Analysis,
		})
	}
	return resp, nil
}

type TranscriptionResult struct {
	Text       string
	Confidence *float64
	Analysis   map[string]any
}

// ProcessTranscription completes a response with its transcribed text. Low confidence
// flags the response for clarification; otherwise the session moves past its question.
func (s *Service) ProcessTranscription(ctx context.Context, responseID uint64, tr TranscriptionResult) (*models.Response, error) {
	resp, err := s.repo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	return s.processTranscription(ctx, resp, nil, tr)
}

// processTranscription advances sess when given, otherwise the response's session is loaded.
func (s *Service) processTranscription(ctx context.Context, resp *models.Response, sess *models.AuditSession, tr TranscriptionResult) (*models.Response, error) {
	now := s.now()
	resp.TranscribedText = strings.TrimSpace(tr.Text)
	resp.TranscriptionConfidence = tr.Confidence
	resp.SpeechAnalysis = tr.Analysis
	resp.TranscriptionStatus = models.TranscriptionCompleted
	resp.RespondedAt = &now

	if resp.IsLowConfidence() && !resp.RequiresClarification {
		note := fmt.Sprintf("Low transcription confidence: %d%%", scoring.RoundInt(*resp.TranscriptionConfidence*100))
		resp.RequiresClarification = true
		resp.ClarificationNotes = &note
	}

	if err := resp.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.SaveResponse(ctx, resp); err != nil {
		return nil, err
	}
	s.responseChanged(ctx, resp)

	q, err := s.repo.GetQuestion(ctx, resp.QuestionID)
	if err != nil {
		return nil, err
	}
	if NeedsReview(resp, q) {
		log.Printf("[Audit] response needs review response_id=%d confidence=%.2f", resp.ID, resp.Confidence())
		return resp, nil
	}

	if sess == nil {
		if sess, err = s.repo.GetSession(ctx, resp.AuditSessionID); err != nil {
			return nil, err
		}
	}
	// only the answer to the current question moves the session on
	if sess.CanBeResumed() && q.Sequence == sess.CurrentQuestionIndex+1 {
		if _, err := s.Advance(ctx, sess); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (s *Service) FailTranscription(ctx context.Context, responseID uint64, msg string) (*models.Response, error) {
	resp, err := s.repo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	note := "Transcription failed: " + msg
	resp.TranscriptionStatus = models.TranscriptionFailed
	resp.ClarificationNotes = &note
	if err := s.repo.SaveResponse(ctx, resp); err != nil {
		return nil, err
	}
	s.responseChanged(ctx, resp)
	s.metrics.TranscriptionFailed(ctx)
	log.Printf("[Audit] transcription failed response_id=%d err=%s", resp.ID, msg)
	return resp, nil
}

func (s *Service) MarkForClarification(ctx context.Context, responseID uint64, notes string) (*models.Response, error) {
	resp, err := s.repo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	resp.RequiresClarification = true
	resp.ClarificationNotes = nil
	if n := strings.TrimSpace(notes); n != "" {
		resp.ClarificationNotes = &n
	}
	if err := s.repo.SaveResponse(ctx, resp); err != nil {
		return nil, err
	}
	s.responseChanged(ctx, resp)
	return resp, nil
}

func (s *Service) ClearClarification(ctx context.Context, responseID uint64) (*models.Response, error) {
	resp, err := s.repo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	resp.RequiresClarification = false
	resp.ClarificationNotes = nil
	if err := s.repo.SaveResponse(ctx, resp); err != nil {
		return nil, err
	}
	s.responseChanged(ctx, resp)
	return resp, nil
}

// Retranscribe queues the stored audio of a response for another transcription pass.
func (s *Service) Retranscribe(ctx context.Context, responseID uint64) (*models.Response, error) {
	resp, err := s.repo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if !resp.HasAudio() {
		return nil, ErrNoAudio
	}

	resp.TranscriptionStatus = models.TranscriptionPending
	if err := s.repo.SaveResponse(ctx, resp); err != nil {
		return nil, err
	}
	resp.TranscriptionStatus = models.TranscriptionProcessing
	if err := s.repo.SaveResponse(ctx, resp); err != nil {
		return nil, err
	}
	s.responseChanged(ctx, resp)
	if _, err := s.enqueue(ctx, jobs.KindTranscribe, resp.ID, ""); err != nil {
		return resp, fmt.Errorf("enqueue transcription: %w", err)
	}
	return resp, nil
}

func (s *Service) GetResponse(ctx context.Context, id uint64) (*models.Response, error) {
	return s.repo.GetResponse(ctx, id)
}

// TranscribeResponse runs the transcriber on a stored response audio file.
// A failed transcription is recorded on the response and is not returned as an error.
func (s *Service) TranscribeResponse(ctx context.Context, responseID uint64) error {
	resp, err := s.repo.GetResponse(ctx, responseID)
	if err != nil {
		return err
	}
	if resp.TranscriptionStatus == models.TranscriptionCompleted {
		return nil
	}
	if !resp.HasAudio() || s.audio == nil {
		_, err := s.FailTranscription(ctx, resp.ID, "no audio available")
		return err
	}

	audio, err := s.audio.Load(ctx, resp.AudioPath)
	if err != nil {
		_, ferr := s.FailTranscription(ctx, resp.ID, err.Error())
		return ferr
	}

	language := models.DefaultLanguage
	sess, err := s.repo.GetSession(ctx, resp.AuditSessionID)
	if err != nil {
		return err
	}
	if sess.UserID != nil {
		if u, err := s.repo.GetUser(ctx, *sess.UserID); err == nil {
			language = u.PreferredLanguage
		}
	}

	tr, err := s.transcriber.Transcribe(ctx, audio, speech.ContentType(resp.AudioPath), language)
	if err != nil {
		_, ferr := s.FailTranscription(ctx, resp.ID, err.Error())
		return ferr
	}
	if strings.TrimSpace(tr.Text) == "" {
		_, ferr := s.FailTranscription(ctx, resp.ID, "empty transcription")
		return ferr
	}
	_, err = s.processTranscription(ctx, resp, sess, TranscriptionResult{
		Text:       tr.Text,
		Confidence: tr.Confidence,
		Analysis:   tr.Analysis,
	})
	return err
}

// SynthesizeQuestion renders the spoken form of a question and stores its audio path.
func (s *Service) SynthesizeQuestion(ctx context.Context, questionID uint64) error {
	if s.audio == nil {
		return ErrAudioDisabled
	}
	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	t, err := s.repo.GetTemplate(ctx, q.AuditTemplateID, false)
	if err != nil {
		return err
	}

	audio, err := s.synthesizer.Synthesize(ctx, SpeechOptimizedText(q), t.DefaultVoice)
	if err != nil {
		return fmt.Errorf("synthesize question %d: %w", q.ID, err)
	}
	stored, err := s.audio.Save(ctx, "questions", audio, ".mp3")
	if err != nil {
		return err
	}
	return s.repo.SetQuestionAudio(ctx, q.ID, stored.Path)
}

// NeedsReview reports a response that is low confidence, flagged, or scored under 40.
func NeedsReview(resp *models.Response, q *models.Question) bool {
	if resp.IsLowConfidence() || resp.RequiresClarification {
		return true
	}
	return QualityScore(resp, q) < 40
}

func QualityScore(resp *models.Response, q *models.Question) int {
	var keywords []string
	if q != nil {
		keywords = q.ExpectedKeywords
	}
	return scoring.QualityScore(resp.TranscribedText, resp.TranscriptionConfidence, keywords)
}

// DurationSeconds is the recorded audio length, or an estimate from the word count.
func DurationSeconds(resp *models.Response) int {
	if d := resp.OriginalAudioDurationSeconds; d != nil && *d > 0 {
		return *d
	}
	return scoring.EstimatedDurationSeconds(resp.TranscribedText)
}

// ResponseView is a response with its derived analysis.
type ResponseView struct {
	models.Response
	QualityScore     int               `json:"quality_score"`
	WordCount        int               `json:"word_count"`
	DurationSeconds  int               `json:"duration_seconds"`
	Keywords         []string          `json:"keywords"`
	Sentiment        scoring.Sentiment `json:"sentiment"`
	NeedsReview      bool              `json:"needs_review"`
	IsHighConfidence bool              `json:"is_high_confidence"`
}

func NewResponseView(resp *models.Response, q *models.Question) *ResponseView {
	kw := scoring.Keywords(resp.TranscribedText)
	if kw == nil {
		kw = []string{}
	}
	return &ResponseView{
		Response:         *resp,
		QualityScore:     QualityScore(resp, q),
		WordCount:        scoring.WordCount(resp.TranscribedText),
		DurationSeconds:  DurationSeconds(resp),
		Keywords:         kw,
		Sentiment:        scoring.AnalyzeSentiment(resp.TranscribedText),
		NeedsReview:      NeedsReview(resp, q),
		IsHighConfidence: resp.IsHighConfidence(),
	}
}

// SessionResponses lists a session's responses with their questions' analysis applied.
func (s *Service) SessionResponses(ctx context.Context, sess *models.AuditSession) ([]*ResponseView, error) {
	responses, err := s.repo.ListResponses(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.ListQuestions(ctx, sess.AuditTemplateID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}
	out := make([]*ResponseView, 0, len(responses))
	for i := range responses {
		out = append(out, NewResponseView(&responses[i], byID[responses[i].QuestionID]))
	}
	return out, nil
}

// View loads the question of resp and wraps both in a ResponseView.
func (s *Service) View(ctx context.Context, resp *models.Response) (*ResponseView, error) {
	q, err := s.repo.GetQuestion(ctx, resp.QuestionID)
	if err != nil {
		return nil, err
	}
	return NewResponseView(resp, q), nil
}
