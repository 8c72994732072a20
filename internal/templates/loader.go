// Package templates loads audit templates from YAML seed files.
package templates

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/suPer8Hu/voice-audit/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed seeds/templates.yaml
var builtin []byte

type File struct {
	Templates []Template `yaml:"templates"`
}

type Template struct {
	Name                     string     `yaml:"name"`
	Description              string     `yaml:"description"`
	EstimatedDurationMinutes int        `yaml:"estimated_duration_minutes"`
	IntroMessage             string     `yaml:"intro_message"`
	OutroMessage             string     `yaml:"outro_message"`
	DefaultVoice             string     `yaml:"default_voice"`
	Inactive                 bool       `yaml:"inactive"`
	FollowupPrompts          []string   `yaml:"followup_prompts"` // applied to questions without their own
	Questions                []Question `yaml:"questions"`
}

type Question struct {
	Text               string              `yaml:"text"`
	SpeechText         string              `yaml:"speech_text"`
	QuestionType       models.QuestionType `yaml:"question_type"`
	MaxResponseSeconds int                 `yaml:"max_response_seconds"`
	ExpectedKeywords   []string            `yaml:"expected_keywords"`
	FollowupPrompts    []string            `yaml:"followup_prompts"`
}

// Builtin returns the templates shipped with the binary.
func Builtin() (*File, error) {
	return LoadFromReader(bytes.NewReader(builtin))
}

func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("templates: open %q: %w", path, err)
	}
	defer f.Close()

	out, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("templates: parse %q: %w", path, err)
	}
	return out, nil
}

func LoadFromReader(r io.Reader) (*File, error) {
	out := &File{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return nil, fmt.Errorf("templates: decode yaml: %w", err)
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the file shape; record-level rules run again on import.
func Validate(f *File) error {
	var errs []error
	seen := make(map[string]bool)
	for i, t := range f.Templates {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("templates[%d].name is required", i))
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("templates[%d].name %q is duplicated", i, name))
		}
		seen[name] = true

		if len(t.Questions) == 0 {
			errs = append(errs, fmt.Errorf("templates[%d] %q has no questions", i, name))
		}
		for j, q := range t.Questions {
			if strings.TrimSpace(q.Text) == "" {
				errs = append(errs, fmt.Errorf("templates[%d].questions[%d].text is required", i, j))
			}
			if q.QuestionType != "" && !q.QuestionType.Valid() {
				errs = append(errs, fmt.Errorf("templates[%d].questions[%d].question_type %q is invalid", i, j, q.QuestionType))
			}
		}
	}
	return errors.Join(errs...)
}

// Model converts t into an unsaved template with its questions in file order.
func (t *Template) Model() *models.AuditTemplate {
	out := &models.AuditTemplate{
		Name:                     strings.TrimSpace(t.Name),
		Description:              t.Description,
		EstimatedDurationMinutes: t.EstimatedDurationMinutes,
		IntroMessage:             t.IntroMessage,
		OutroMessage:             t.OutroMessage,
		DefaultVoice:             t.DefaultVoice,
		Active:                   !t.Inactive,
	}
	for _, q := range t.Questions {
		prompts := q.FollowupPrompts
		if len(prompts) == 0 {
			prompts = t.FollowupPrompts
		}
		out.Questions = append(out.Questions, models.Question{
			Text:               q.Text,
			SpeechText:         q.SpeechText,
			QuestionType:       q.QuestionType,
			MaxResponseSeconds: q.MaxResponseSeconds,
			ExpectedKeywords:   q.ExpectedKeywords,
			FollowupPrompts:    prompts,
		})
	}
	return out
}

type Importer interface {
	ImportTemplate(ctx context.Context, t *models.AuditTemplate) (bool, error)
}

type SeedResult struct {
	Created int
	Skipped int
}

// Seed imports every template of f; templates whose name already exists are skipped.
func Seed(ctx context.Context, imp Importer, f *File) (SeedResult, error) {
	var res SeedResult
	for i := range f.Templates {
		t := &f.Templates[i]
		created, err := imp.ImportTemplate(ctx, t.Model())
		if err != nil {
			return res, fmt.Errorf("import %q: %w", t.Name, err)
		}
		if created {
			res.Created++
			log.Printf("[Seed] created template name=%q questions=%d", t.Name, len(t.Questions))
		} else {
			res.Skipped++
			log.Printf("[Seed] skipped existing template name=%q", t.Name)
		}
	}
	return res, nil
}
