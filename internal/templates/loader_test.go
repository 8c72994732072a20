package templates

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/db"
	"gorm.io/gorm"
)

func TestBuiltinTemplates(t *testing.T) {
	f, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if len(f.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(f.Templates))
	}

	reflection := f.Templates[0].Model()
	if reflection.Name != "Daily Reflection" || reflection.EstimatedDurationMinutes != 10 || !reflection.Active {
		t.Fatalf("unexpected template %+v", reflection)
	}
	if len(reflection.Questions) != 6 {
		t.Fatalf("expected 6 questions, got %d", len(reflection.Questions))
	}
	q := reflection.Questions[0]
	if len(q.ExpectedKeywords) != 7 || q.ExpectedKeywords[0] != "control" {
		t.Fatalf("unexpected keywords %v", q.ExpectedKeywords)
	}
	if len(q.FollowupPrompts) != 3 || q.FollowupPrompts[0] != "Could you tell me more about that?" {
		t.Fatalf("template prompts not applied: %v", q.FollowupPrompts)
	}

	business := f.Templates[1].Model()
	if business.DefaultVoice != "en-US-Neural2-D" || len(business.Questions) != 5 {
		t.Fatalf("unexpected business template %+v", business)
	}
}

func TestLoadFromReaderRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"unknown field": "templates:\n  - name: A\n    colour: red\n    questions:\n      - text: Hi?\n",
		"no name":       "templates:\n  - questions:\n      - text: Hi?\n",
		"no questions":  "templates:\n  - name: A\n",
		"duplicate":     "templates:\n  - name: A\n    questions: [{text: Hi?}]\n  - name: A\n    questions: [{text: Hi?}]\n",
		"bad type":      "templates:\n  - name: A\n    questions: [{text: Hi?, question_type: essay}]\n",
	}
	for name, doc := range cases {
		if _, err := LoadFromReader(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	svc := audit.NewService(audit.NewRepo(gdb), audit.Options{})
	ctx := context.Background()

	f, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	res, err := Seed(ctx, svc, f)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Created != 2 || res.Skipped != 0 {
		t.Fatalf("unexpected first seed %+v", res)
	}
	res, err = Seed(ctx, svc, f)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if res.Created != 0 || res.Skipped != 2 {
		t.Fatalf("unexpected second seed %+v", res)
	}

	list, err := svc.ListTemplates(ctx, true)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d %v", len(list), err)
	}
	business, err := svc.GetTemplate(ctx, list[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if business.Name != "Small Business Health Check" || len(business.Questions) != 5 {
		t.Fatalf("unexpected template %s with %d questions", business.Name, len(business.Questions))
	}
	for i, q := range business.Questions {
		if q.Sequence != i+1 {
			t.Fatalf("question %d has sequence %d", i, q.Sequence)
		}
	}
	// speech text derived when the file gives none
	if got := business.Questions[1].SpeechText; !strings.HasSuffix(got, "? ...") {
		t.Fatalf("unexpected derived speech text %q", got)
	}
}
