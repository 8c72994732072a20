package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/models"
)

type startSessionReq struct {
	TemplateID uint64 `json:"template_id" binding:"required"`
	Voice      string `json:"voice"`
}

func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10005, "template_id required")
		return
	}
	sess, err := h.Audit.StartSession(c.Request.Context(), audit.StartInput{
		TemplateID: req.TemplateID,
		UserID:     actor(c),
		Voice:      req.Voice,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.sessionBody(c, sess)
}

// session loads the :token session as seen by the caller.
func (h *Handler) session(c *gin.Context) (*models.AuditSession, bool) {
	sess, err := h.Audit.SessionForActor(c.Request.Context(), c.Param("token"), actor(c))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) sessionBody(c *gin.Context, sess *models.AuditSession) {
	ctx := c.Request.Context()
	progress, err := h.Audit.Progress(ctx, sess)
	if err != nil {
		fail(c, err)
		return
	}
	current, err := h.Audit.CurrentQuestion(ctx, sess)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"session":          sess,
		"progress":         progress,
		"current_question": audit.NewQuestionView(current),
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	progress, err := h.Audit.Progress(ctx, sess)
	if err != nil {
		fail(c, err)
		return
	}
	responses, err := h.Audit.SessionResponses(ctx, sess)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"session": sess, "progress": progress, "responses": responses})
}

func (h *Handler) CurrentQuestion(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current, err := h.Audit.CurrentQuestion(ctx, sess)
	if err != nil {
		fail(c, err)
		return
	}
	previous, err := h.Audit.PreviousQuestion(ctx, sess)
	if err != nil {
		fail(c, err)
		return
	}
	var next *models.Question
	if current != nil {
		if next, err = h.Audit.QuestionAfter(ctx, current); err != nil {
			fail(c, err)
			return
		}
	}
	common.OK(c, gin.H{
		"question":     audit.NewQuestionView(current),
		"has_previous": previous != nil,
		"has_next":     next != nil,
	})
}

func (h *Handler) Advance(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	advanced, err := h.Audit.Advance(c.Request.Context(), sess)
	if err != nil {
		fail(c, err)
		return
	}
	if !advanced {
		common.Fail(c, http.StatusConflict, 40906, "no question left to advance to")
		return
	}
	h.sessionBody(c, sess)
}

func (h *Handler) Abandon(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.Audit.Abandon(c.Request.Context(), sess); err != nil {
		fail(c, err)
		return
	}
	h.sessionBody(c, sess)
}

func (h *Handler) Restart(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.Audit.Restart(c.Request.Context(), sess); err != nil {
		fail(c, err)
		return
	}
	h.sessionBody(c, sess)
}

type recordResponseReq struct {
	QuestionID           uint64         `json:"question_id" binding:"required"`
	Text                 string         `json:"text"`
	Confidence           *float64       `json:"confidence"`
	SpeechAnalysis       map[string]any `json:"speech_analysis"`
	AudioDurationSeconds *int           `json:"audio_duration_seconds"`
}

// RecordResponse accepts a JSON answer or a multipart form with an "audio" file.
func (h *Handler) RecordResponse(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var in audit.RecordInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if !h.bindAudioForm(c, &in) {
			return
		}
	} else {
		var req recordResponseReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, 10006, "question_id required")
			return
		}
		in = audit.RecordInput{
			QuestionID:           req.QuestionID,
			Text:                 req.Text,
			Confidence:           req.Confidence,
			Analysis:             req.SpeechAnalysis,
			AudioDurationSeconds: req.AudioDurationSeconds,
		}
	}

	resp, err := h.Audit.RecordResponse(c.Request.Context(), sess, in)
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

func (h *Handler) bindAudioForm(c *gin.Context, in *audit.RecordInput) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Cfg.MaxUploadBytes)

	qid, err := strconv.ParseUint(c.PostForm("question_id"), 10, 64)
	if err != nil || qid == 0 {
		badRequest(c, 10006, "question_id required")
		return false
	}
	in.QuestionID = qid
	in.Text = c.PostForm("text")

	if v := c.PostForm("confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			badRequest(c, 10007, "invalid confidence")
			return false
		}
		in.Confidence = &f
	}
	if v := c.PostForm("duration_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, 10008, "invalid duration_seconds")
			return false
		}
		in.AudioDurationSeconds = &n
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		badRequest(c, 10009, "audio file required")
		return false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, 10009, "audio file unreadable")
		return false
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		common.Fail(c, http.StatusRequestEntityTooLarge, 41301, "audio too large")
		return false
	}
	in.Audio = audio
	in.AudioExt = strings.ToLower(filepath.Ext(fh.Filename))
	return true
}
