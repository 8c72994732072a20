package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/models"
)

func (h *Handler) ListTemplates(c *gin.Context) {
	// ?all=true includes inactive templates
	templates, err := h.Audit.ListTemplates(c.Request.Context(), c.Query("all") != "true")
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"templates": templates})
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, 10004, "invalid template id")
		return
	}
	t, err := h.Audit.GetTemplate(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	questions := make([]*audit.QuestionView, 0, len(t.Questions))
	for i := range t.Questions {
		questions = append(questions, audit.NewQuestionView(&t.Questions[i]))
	}
	t.Questions = nil
	common.OK(c, gin.H{"template": t, "questions": questions})
}

func (h *Handler) TemplateStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, 10004, "invalid template id")
		return
	}
	stats, err := h.Audit.TemplateStats(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, stats)
}

type createTemplateReq struct {
	Name                     string `json:"name"`
	Description              string `json:"description"`
	EstimatedDurationMinutes int    `json:"estimated_duration_minutes"`
	IntroMessage             string `json:"intro_message"`
	OutroMessage             string `json:"outro_message"`
	DefaultVoice             string `json:"default_voice"`
	Active                   *bool  `json:"active"`
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req createTemplateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10001, "invalid json")
		return
	}
	t, err := h.Audit.CreateTemplate(c.Request.Context(), audit.TemplateInput{
		Name:                     req.Name,
		Description:              req.Description,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
		IntroMessage:             req.IntroMessage,
		OutroMessage:             req.OutroMessage,
		DefaultVoice:             req.DefaultVoice,
		Active:                   req.Active,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, t)
}

type addQuestionReq struct {
	Text               string              `json:"text"`
	SpeechText         string              `json:"speech_text"`
	Sequence           int                 `json:"sequence"`
	QuestionType       models.QuestionType `json:"question_type"`
	MaxResponseSeconds int                 `json:"max_response_seconds"`
	ExpectedKeywords   []string            `json:"expected_keywords"`
	FollowupPrompts    []string            `json:"followup_prompts"`
}

func (h *Handler) AddQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, 10004, "invalid template id")
		return
	}
	var req addQuestionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10001, "invalid json")
		return
	}
	q, err := h.Audit.AddQuestion(c.Request.Context(), id, audit.QuestionInput{
		Text:               req.Text,
		SpeechText:         req.SpeechText,
		Sequence:           req.Sequence,
		QuestionType:       req.QuestionType,
		MaxResponseSeconds: req.MaxResponseSeconds,
		ExpectedKeywords:   req.ExpectedKeywords,
		FollowupPrompts:    req.FollowupPrompts,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, audit.NewQuestionView(q))
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, 10004, "invalid template id")
		return
	}
	if err := h.Audit.DeleteTemplate(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}
