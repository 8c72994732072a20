package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/config"
	"github.com/suPer8Hu/voice-audit/internal/httpapi/handlers"
	"github.com/suPer8Hu/voice-audit/internal/httpapi/middleware"
	"github.com/suPer8Hu/voice-audit/internal/insight"
	"github.com/suPer8Hu/voice-audit/internal/observe"
)

func NewRouter(cfg config.Config, auditSvc *audit.Service, insights *insight.Service, metrics *observe.Metrics) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics(metrics))

	h := handlers.NewHandler(cfg, auditSvc, insights)

	r.GET("/ping", h.Ping)

	// users
	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	// templates are public to read
	r.GET("/templates", h.ListTemplates)
	r.GET("/templates/:id", h.GetTemplate)
	r.GET("/templates/:id/stats", h.TemplateStats)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.PATCH("/me/preferences", h.UpdatePreferences)
	authGroup.GET("/me/sessions", h.MySessions)
	authGroup.GET("/me/stats", h.MyStats)
	authGroup.POST("/templates", h.CreateTemplate)
	authGroup.POST("/templates/:id/questions", h.AddQuestion)
	authGroup.DELETE("/templates/:id", h.DeleteTemplate)

	// sessions may be anonymous; owned sessions need the owner's token
	open := r.Group("/")
	open.Use(middleware.OptionalAuth(cfg.JWTSecret))
	open.POST("/sessions", h.StartSession)
	open.GET("/sessions/:token", h.GetSession)
	open.GET("/sessions/:token/question", h.CurrentQuestion)
	open.POST("/sessions/:token/advance", h.Advance)
	open.POST("/sessions/:token/abandon", h.Abandon)
	open.POST("/sessions/:token/restart", h.Restart)
	open.POST("/sessions/:token/responses", h.RecordResponse)
	open.GET("/sessions/:token/insight", h.GetInsight)
	open.PUT("/sessions/:token/insight", h.UpdateInsight)

	open.POST("/sessions/:token/responses/:id/transcription", h.ProcessTranscription)
	open.POST("/sessions/:token/responses/:id/transcription/failure", h.FailTranscription)
	open.POST("/sessions/:token/responses/:id/clarification", h.MarkForClarification)
	open.DELETE("/sessions/:token/responses/:id/clarification", h.ClearClarification)
	open.POST("/sessions/:token/responses/:id/retranscribe", h.Retranscribe)
	return r
}
