package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/models"
)

// response loads the :id response of the :token session. A response of any other
// session is reported as not found.
func (h *Handler) response(c *gin.Context) (*models.Response, bool) {
	sess, ok := h.session(c)
	if !ok {
		return nil, false
	}
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, 10010, "invalid response id")
		return nil, false
	}
	resp, err := h.Audit.GetResponse(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if resp.AuditSessionID != sess.ID {
		fail(c, audit.ErrNotFound)
		return nil, false
	}
	return resp, true
}

func (h *Handler) respondView(c *gin.Context, resp *models.Response, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	view, err := h.Audit.View(c.Request.Context(), resp)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, view)
}

type transcriptionReq struct {
	Text           string         `json:"text" binding:"required"`
	Confidence     *float64       `json:"confidence"`
	SpeechAnalysis map[string]any `json:"speech_analysis"`
}

func (h *Handler) ProcessTranscription(c *gin.Context) {
	resp, ok := h.response(c)
	if !ok {
		return
	}
	var req transcriptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10011, "text required")
		return
	}
	resp, err := h.Audit.ProcessTranscription(c.Request.Context(), resp.ID, audit.TranscriptionResult{
		Text:       req.Text,
		Confidence: req.Confidence,
		Analysis:   req.SpeechAnalysis,
	})
	h.respondView(c, resp, err)
}

type transcriptionFailureReq struct {
	Error string `json:"error" binding:"required"`
}

func (h *Handler) FailTranscription(c *gin.Context) {
	resp, ok := h.response(c)
	if !ok {
		return
	}
	var req transcriptionFailureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10012, "error required")
		return
	}
	resp, err := h.Audit.FailTranscription(c.Request.Context(), resp.ID, req.Error)
	h.respondView(c, resp, err)
}

type clarificationReq struct {
	Notes string `json:"notes"`
}

func (h *Handler) MarkForClarification(c *gin.Context) {
	resp, ok := h.response(c)
	if !ok {
		return
	}
	var req clarificationReq
	// notes are optional, so an empty body is fine
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, 10013, "invalid clarification body")
		return
	}
	resp, err := h.Audit.MarkForClarification(c.Request.Context(), resp.ID, req.Notes)
	h.respondView(c, resp, err)
}

func (h *Handler) ClearClarification(c *gin.Context) {
	resp, ok := h.response(c)
	if !ok {
		return
	}
	resp, err := h.Audit.ClearClarification(c.Request.Context(), resp.ID)
	h.respondView(c, resp, err)
}

func (h *Handler) Retranscribe(c *gin.Context) {
	resp, ok := h.response(c)
	if !ok {
		return
	}
	resp, err := h.Audit.Retranscribe(c.Request.Context(), resp.ID)
	h.respondView(c, resp, err)
}
