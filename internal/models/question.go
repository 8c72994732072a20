package models

import (
	"strings"
	"time"
)

type QuestionType string

const (
	QuestionOpenEnded      QuestionType = "open_ended"
	QuestionYesNo          QuestionType = "yes_no"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionNumeric        QuestionType = "numeric"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionOpenEnded, QuestionYesNo, QuestionMultipleChoice, QuestionNumeric:
		return true
	}
	return false
}

const (
	DefaultMaxResponseSeconds = 120
	MaxResponseSecondsLimit   = 300
)

type Question struct {
	ID                 uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	AuditTemplateID    uint64       `gorm:"not null;index:uniq_question_template_seq,unique,priority:1" json:"audit_template_id"`
	Sequence           int          `gorm:"not null;index:uniq_question_template_seq,unique,priority:2" json:"sequence"`
	Text               string       `gorm:"type:text;not null" json:"text"`
	SpeechText         string       `gorm:"type:text" json:"speech_text"`
	QuestionType       QuestionType `gorm:"type:varchar(24);index;not null" json:"question_type"`
	MaxResponseSeconds int          `gorm:"not null" json:"max_response_seconds"`
	ExpectedKeywords   []string     `gorm:"type:json;serializer:json" json:"expected_keywords"`
	FollowupPrompts    []string     `gorm:"type:json;serializer:json" json:"followup_prompts"`
	AudioPath          string       `gorm:"type:varchar(255)" json:"-"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (Question) TableName() string { return "questions" }

func (q *Question) ApplyDefaults() {
	if q.MaxResponseSeconds == 0 {
		q.MaxResponseSeconds = DefaultMaxResponseSeconds
	}
	if q.QuestionType == "" {
		q.QuestionType = QuestionOpenEnded
	}
}

func (q *Question) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(q.Text) == "" {
		v.Add("text", "can't be blank")
	}
	if q.Sequence <= 0 {
		v.Add("sequence", "must be greater than 0")
	}
	if q.MaxResponseSeconds <= 0 || q.MaxResponseSeconds > MaxResponseSecondsLimit {
		v.Add("max_response_seconds", "must be in 1..300")
	}
	if !q.QuestionType.Valid() {
		v.Add("question_type", "is not included in the list")
	}
	return v.OrNil()
}

func (q *Question) HasAudio() bool { return q.AudioPath != "" }

// ExpectedResponseFormat is the spoken hint played after the question.
func (q *Question) ExpectedResponseFormat() string {
	switch q.QuestionType {
	case QuestionYesNo:
		return "Please answer yes or no"
	case QuestionNumeric:
		return "Please provide a number"
	case QuestionMultipleChoice:
		return "Please choose from the available options"
	default:
		return "Please provide your response"
	}
}
