package models

import (
	"net/mail"
	"strings"
	"time"
)

const (
	DefaultVoice    = "en-US-Neural2-C"
	DefaultLanguage = "en-US"
)

// SupportedLanguages lists the BCP-47 tags a user may pick as preferred language.
var SupportedLanguages = []string{
	"en-US", "es-ES", "fr-FR", "de-DE", "it-IT", "pt-BR", "ja-JP", "ko-KR", "zh-CN",
}

type User struct {
	ID                uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email             string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name              string     `gorm:"type:varchar(128);not null" json:"name"`
	PasswordHash      string     `gorm:"type:varchar(255)" json:"-"`
	PreferredLanguage string     `gorm:"type:varchar(8);not null" json:"preferred_language"`
	PreferredVoice    string     `gorm:"type:varchar(64);not null" json:"preferred_voice"`
	SpeechEnabled     bool       `gorm:"not null" json:"speech_enabled"`
	LastAuditAt       *time.Time `json:"last_audit_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// ApplyDefaults fills the preference columns left empty on registration.
func (u *User) ApplyDefaults() {
	if u.PreferredVoice == "" {
		u.PreferredVoice = DefaultVoice
	}
	if u.PreferredLanguage == "" {
		u.PreferredLanguage = DefaultLanguage
	}
}

func (u *User) Validate() error {
	v := &ValidationError{}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		v.Add("email", "can't be blank")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		v.Add("email", "is invalid")
	}
	if strings.TrimSpace(u.Name) == "" {
		v.Add("name", "can't be blank")
	}
	if !isSupportedLanguage(u.PreferredLanguage) {
		v.Add("preferred_language", "is not included in the list")
	}
	if strings.TrimSpace(u.PreferredVoice) == "" {
		v.Add("preferred_voice", "can't be blank")
	}
	return v.OrNil()
}

// FullName returns the display name, falling back to the humanised local part of the email.
func (u *User) FullName() string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	local, _, _ := strings.Cut(u.Email, "@")
	local = strings.ReplaceAll(local, "_", " ")
	if local == "" {
		return ""
	}
	return strings.ToUpper(local[:1]) + strings.ToLower(local[1:])
}

func isSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
