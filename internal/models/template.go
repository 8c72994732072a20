package models

import (
	"strings"
	"time"
)

const DefaultEstimatedDurationMinutes = 15

type AuditTemplate struct {
	ID                       uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                     string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"name"`
	Description              string     `gorm:"type:text" json:"description"`
	Active                   bool       `gorm:"index;not null" json:"active"`
	EstimatedDurationMinutes int        `gorm:"not null" json:"estimated_duration_minutes"`
	IntroMessage             string     `gorm:"type:text" json:"intro_message"`
	OutroMessage             string     `gorm:"type:text" json:"outro_message"`
	DefaultVoice             string     `gorm:"type:varchar(64);not null" json:"default_voice"`
	Questions                []Question `gorm:"foreignKey:AuditTemplateID" json:"questions,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

func (AuditTemplate) TableName() string { return "audit_templates" }

func (t *AuditTemplate) ApplyDefaults() {
	if t.DefaultVoice == "" {
		t.DefaultVoice = DefaultVoice
	}
	if t.EstimatedDurationMinutes == 0 {
		t.EstimatedDurationMinutes = DefaultEstimatedDurationMinutes
	}
}

func (t *AuditTemplate) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(t.Name) == "" {
		v.Add("name", "can't be blank")
	}
	if t.EstimatedDurationMinutes <= 0 {
		v.Add("estimated_duration_minutes", "must be greater than 0")
	}
	if strings.TrimSpace(t.DefaultVoice) == "" {
		v.Add("default_voice", "can't be blank")
	}
	return v.OrNil()
}
