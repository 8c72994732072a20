package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/config"
	"github.com/suPer8Hu/voice-audit/internal/httpapi/middleware"
	"github.com/suPer8Hu/voice-audit/internal/insight"
)

type Handler struct {
	Cfg      config.Config
	Audit    *audit.Service
	Insights *insight.Service
}

func NewHandler(cfg config.Config, auditSvc *audit.Service, insights *insight.Service) *Handler {
	return &Handler{Cfg: cfg, Audit: auditSvc, Insights: insights}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// actor is the authenticated user of the request, nil for anonymous callers.
func actor(c *gin.Context) *uint64 {
	if uid, ok := middleware.UserID(c); ok {
		return &uid
	}
	return nil
}

func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
