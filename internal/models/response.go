package models

import (
	"strings"
	"time"
)

type TranscriptionStatus string

const (
	TranscriptionPending    TranscriptionStatus = "pending"
	TranscriptionProcessing TranscriptionStatus = "processing"
	TranscriptionCompleted  TranscriptionStatus = "completed"
	TranscriptionFailed     TranscriptionStatus = "failed"
)

const (
	HighConfidenceThreshold = 0.8
	LowConfidenceThreshold  = 0.5
)

type Response struct {
	ID                           uint64              `gorm:"primaryKey;autoIncrement" json:"id"`
	AuditSessionID               uint64              `gorm:"not null;index;index:uniq_response_session_question,unique,priority:1" json:"audit_session_id"`
	QuestionID                   uint64              `gorm:"not null;index;index:uniq_response_session_question,unique,priority:2" json:"question_id"`
	TranscribedText              string              `gorm:"type:text" json:"transcribed_text"`
	OriginalAudioDurationSeconds *int                `json:"original_audio_duration_seconds"`
	RespondedAt                  *time.Time          `gorm:"index" json:"responded_at"`
	TranscriptionStatus          TranscriptionStatus `gorm:"type:varchar(16);index;not null" json:"transcription_status"`
	TranscriptionConfidence      *float64            `json:"transcription_confidence"`
	SpeechAnalysis               map[string]any      `gorm:"type:json;serializer:json" json:"speech_analysis,omitempty"`
	RequiresClarification        bool                `gorm:"not null;index" json:"requires_clarification"`
	ClarificationNotes           *string             `gorm:"type:text" json:"clarification_notes"`
	AudioPath                    string              `gorm:"type:varchar(255)" json:"-"`
	AudioHash                    string              `gorm:"type:varchar(64);index" json:"audio_hash,omitempty"`
	AudioSize                    int64               `json:"audio_size,omitempty"`
	CreatedAt                    time.Time           `json:"created_at"`
	UpdatedAt                    time.Time           `json:"updated_at"`
}

func (Response) TableName() string { return "responses" }

func (r *Response) Validate() error {
	v := &ValidationError{}
	if r.TranscriptionStatus == "" {
		v.Add("transcription_status", "can't be blank")
	}
	if r.TranscriptionStatus == TranscriptionCompleted && strings.TrimSpace(r.TranscribedText) == "" {
		v.Add("transcribed_text", "can't be blank")
	}
	if r.HasAudio() && (r.OriginalAudioDurationSeconds == nil || *r.OriginalAudioDurationSeconds <= 0) {
		v.Add("original_audio_duration_seconds", "must be greater than 0")
	}
	if c := r.TranscriptionConfidence; c != nil && (*c < 0 || *c > 1) {
		v.Add("transcription_confidence", "must be in 0.0..1.0")
	}
	return v.OrNil()
}

func (r *Response) HasAudio() bool { return r.AudioPath != "" }

func (r *Response) HasText() bool { return strings.TrimSpace(r.TranscribedText) != "" }

func (r *Response) IsHighConfidence() bool {
	return r.TranscriptionConfidence != nil && *r.TranscriptionConfidence >= HighConfidenceThreshold
}

func (r *Response) IsLowConfidence() bool {
	return r.TranscriptionConfidence != nil && *r.TranscriptionConfidence < LowConfidenceThreshold
}

func (r *Response) Confidence() float64 {
	if r.TranscriptionConfidence == nil {
		return 0
	}
	return *r.TranscriptionConfidence
}
