package audit

import (
	"errors"

	"github.com/suPer8Hu/voice-audit/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is gorm's not-found error so callers can keep using errors.Is on either.
var ErrNotFound = gorm.ErrRecordNotFound

var (
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTemplateInUse      = errors.New("template has sessions and cannot be deleted")
	ErrTemplateInactive   = errors.New("template is not active")
	ErrNoAudio            = errors.New("response has no audio")
	ErrAudioDisabled      = errors.New("audio storage is not configured")
)

type ValidationError = models.ValidationError

// fieldError builds a single-field validation failure.
func fieldError(field, msg string) error {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}
