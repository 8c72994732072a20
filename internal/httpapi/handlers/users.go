package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/auth"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/models"
)

const tokenTTL = 24 * time.Hour

type createUserReq struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferred_language"`
	PreferredVoice    string `json:"preferred_voice"`
	SpeechEnabled     *bool  `json:"speech_enabled"`
}

func userBody(u *models.User) gin.H {
	return gin.H{
		"id":                 u.ID,
		"email":              u.Email,
		"name":               u.Name,
		"full_name":          u.FullName(),
		"preferred_language": u.PreferredLanguage,
		"preferred_voice":    u.PreferredVoice,
		"speech_enabled":     u.SpeechEnabled,
		"last_audit_at":      u.LastAuditAt,
		"created_at":         u.CreatedAt,
	}
}

func (h *Handler) signedUser(c *gin.Context, u *models.User) {
	token, err := auth.SignJWT(u.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	body := userBody(u)
	body["token"] = token
	common.OK(c, body)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10001, "invalid json")
		return
	}

	u, err := h.Audit.RegisterUser(c.Request.Context(), audit.RegisterInput{
		Email:             req.Email,
		Name:              req.Name,
		Password:          req.Password,
		PreferredLanguage: req.PreferredLanguage,
		PreferredVoice:    req.PreferredVoice,
		SpeechEnabled:     req.SpeechEnabled,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.signedUser(c, u)
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10002, "email and password required")
		return
	}
	u, err := h.Audit.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	h.signedUser(c, u)
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.Audit.GetUser(c.Request.Context(), *actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, userBody(u))
}

type preferencesReq struct {
	PreferredLanguage *string `json:"preferred_language"`
	PreferredVoice    *string `json:"preferred_voice"`
	SpeechEnabled     *bool   `json:"speech_enabled"`
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var req preferencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10001, "invalid json")
		return
	}
	u, err := h.Audit.UpdatePreferences(c.Request.Context(), *actor(c), audit.PreferencesInput{
		PreferredLanguage: req.PreferredLanguage,
		PreferredVoice:    req.PreferredVoice,
		SpeechEnabled:     req.SpeechEnabled,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, userBody(u))
}

func (h *Handler) MySessions(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, 10003, "invalid limit")
			return
		}
		limit = n
	}
	sessions, err := h.Audit.RecentSessions(c.Request.Context(), *actor(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, gin.H{"sessions": sessions})
}

func (h *Handler) MyStats(c *gin.Context) {
	stats, err := h.Audit.UserStats(c.Request.Context(), *actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, stats)
}
