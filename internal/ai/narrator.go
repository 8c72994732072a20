package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const narratorSystemPrompt = "You write short, neutral summaries of completed self-audits. " +
	"Use at most three sentences. Do not invent facts that are not in the data. Reply with the summary only."

// SummaryFacts is everything the narrator may mention about a completed session.
type SummaryFacts struct {
	TemplateName    string
	Responses       int
	DurationMinutes float64
	CompletionRate  float64
	OverallScore    *float64
	Themes          []string
	Risks           []string
	FollowUps       int
	Draft           string
}

// Narrator rewrites the heuristic summary of an insight through a chat backend.
type Narrator struct {
	registry *Registry
	provider string
	model    string
	timeout  time.Duration
}

func NewNarrator(registry *Registry, provider, model string) *Narrator {
	return &Narrator{registry: registry, provider: provider, model: model, timeout: 30 * time.Second}
}

func (n *Narrator) Narrate(ctx context.Context, facts SummaryFacts) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	p, err := n.registry.Get(ctx, n.provider, n.model)
	if err != nil {
		return "", err
	}
	reply, err := p.Chat(ctx, []Message{
		{Role: "system", Content: narratorSystemPrompt},
		{Role: "user", Content: FormatFacts(facts)},
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("narrator: empty reply")
	}
	return reply, nil
}

// FormatFacts renders facts as the user turn of the narration prompt.
func FormatFacts(f SummaryFacts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Audit: %s\n", f.TemplateName)
	fmt.Fprintf(&b, "Responses: %d\n", f.Responses)
	fmt.Fprintf(&b, "Duration: %.1f minutes\n", f.DurationMinutes)
	fmt.Fprintf(&b, "Completion rate: %.1f%%\n", f.CompletionRate)
	if f.OverallScore != nil {
		fmt.Fprintf(&b, "Overall score: %.1f/100\n", *f.OverallScore)
	}
	if len(f.Themes) > 0 {
		fmt.Fprintf(&b, "Common themes: %s\n", strings.Join(f.Themes, ", "))
	}
	if len(f.Risks) > 0 {
		fmt.Fprintf(&b, "Risks: %s\n", strings.Join(f.Risks, "; "))
	}
	fmt.Fprintf(&b, "Items requiring follow-up: %d\n", f.FollowUps)
	if f.Draft != "" {
		fmt.Fprintf(&b, "Draft summary: %s\n", f.Draft)
	}
	return b.String()
}
