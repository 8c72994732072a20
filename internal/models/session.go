package models

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionStarted    SessionStatus = "started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

type AuditSession struct {
	ID                   uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               *uint64       `gorm:"index" json:"user_id"`
	AuditTemplateID      uint64        `gorm:"index;not null" json:"audit_template_id"`
	Status               SessionStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	StartedAt            *time.Time    `json:"started_at"`
	CompletedAt          *time.Time    `json:"completed_at"`
	SessionToken         string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_token"`
	CurrentQuestionIndex int           `gorm:"not null" json:"current_question_index"`
	PreferredVoice       string        `gorm:"type:varchar(64);not null" json:"preferred_voice"`
	SpeechEnabled        bool          `gorm:"not null" json:"speech_enabled"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

func (AuditSession) TableName() string { return "audit_sessions" }

func (s *AuditSession) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(s.SessionToken) == "" {
		v.Add("session_token", "can't be blank")
	}
	if s.CurrentQuestionIndex < 0 {
		v.Add("current_question_index", "must be greater than or equal to 0")
	}
	if strings.TrimSpace(s.PreferredVoice) == "" {
		v.Add("preferred_voice", "can't be blank")
	}
	return v.OrNil()
}

func (s *AuditSession) Anonymous() bool { return s.UserID == nil }

func (s *AuditSession) Completed() bool { return s.Status == SessionCompleted }

// CanBeResumed reports whether the session is still in a non-terminal state.
func (s *AuditSession) CanBeResumed() bool {
	return s.Status == SessionStarted || s.Status == SessionInProgress
}

// DurationMinutes measures started_at to completed_at (or now while running), in minutes.
func (s *AuditSession) DurationMinutes(now time.Time) float64 {
	if s.StartedAt == nil {
		return 0
	}
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	return end.Sub(*s.StartedAt).Minutes()
}
