// Package ai wraps chat-completion backends used to narrate audit summaries.
package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider returns one complete assistant reply for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Options tune a single completion. Zero values leave the backend defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}
