package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type scriptedProvider struct {
	reply string
	got   []Message
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	_ = ctx
	p.got = append([]Message(nil), messages...)
	return p.reply, nil
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get(context.Background(), "nope", ""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	b := NewBuiltinRegistry(BuiltinConfig{})
	if got := strings.Join(b.Names(), ","); got != "ollama,openrouter" {
		t.Fatalf("unexpected builtin providers %q", got)
	}
}

func TestNarrator_SendsFactsAndTrimsReply(t *testing.T) {
	prov := &scriptedProvider{reply: "  The audit went well.  "}
	r := NewRegistry()
	r.Register("Fake", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		return prov, nil
	})
	score := 92.4
	n := NewNarrator(r, "fake", "m")

	got, err := n.Narrate(context.Background(), SummaryFacts{
		TemplateName: "Daily Reflection",
		Responses:    3,
		OverallScore: &score,
		Themes:       []string{"planning"},
	})
	if err != nil {
		t.Fatalf("narrate: %v", err)
	}
	if got != "The audit went well." {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(prov.got) != 2 || prov.got[0].Role != "system" {
		t.Fatalf("unexpected messages %+v", prov.got)
	}
	if !strings.Contains(prov.got[1].Content, "Overall score: 92.4/100") || !strings.Contains(prov.got[1].Content, "planning") {
		t.Fatalf("facts missing from prompt: %q", prov.got[1].Content)
	}
}

func TestNarrator_EmptyReplyIsError(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func(ctx context.Context, model string) (Provider, error) {
		return &scriptedProvider{reply: "   "}, nil
	})
	if _, err := NewNarrator(r, "fake", "").Narrate(context.Background(), SummaryFacts{}); err == nil {
		t.Fatalf("expected error for empty reply")
	}
}

func TestOllamaProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Stream || req.Model != "llama3:latest" || req.Options["temperature"] != 0.2 {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": "hi"}})
	}))
	defer srv.Close()

	got, err := NewOllamaProvider(srv.URL+"/", "").Chat(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil || got != "hi" {
		t.Fatalf("chat: %q %v", got, err)
	}
}

func TestOpenRouterProvider_RequiresKeyAndSurfacesErrors(t *testing.T) {
	p := NewOpenRouterProvider("", "", "openrouter/auto", "", "")
	if _, err := p.Chat(context.Background(), nil); err == nil {
		t.Fatalf("expected error without api key")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" || r.Header.Get("X-Title") != "voice-audit" {
			t.Errorf("missing headers")
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p = NewOpenRouterProvider(srv.URL, "k", "openrouter/auto", "", "voice-audit")
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected upstream message, got %v", err)
	}
}
