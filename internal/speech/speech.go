// Package speech is the boundary to the external speech service: audio in,
// text plus confidence out (transcription), and text in, audio out (synthesis).
package speech

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("speech: service not configured")

type Transcription struct {
	Text       string         `json:"text"`
	Confidence *float64       `json:"confidence,omitempty"`
	Analysis   map[string]any `json:"analysis,omitempty"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType, language string) (*Transcription, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Disabled satisfies both interfaces and always reports ErrNotConfigured.
type Disabled struct{}

func (Disabled) Transcribe(context.Context, []byte, string, string) (*Transcription, error) {
	return nil, ErrNotConfigured
}

func (Disabled) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, ErrNotConfigured
}
