package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/audit"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/httpapi/middleware"
	"github.com/suPer8Hu/voice-audit/internal/insight"
)

// fail maps a service error onto the response envelope.
func fail(c *gin.Context, err error) {
	var v *audit.ValidationError
	switch {
	case errors.As(err, &v):
		common.FailWith(c, http.StatusUnprocessableEntity, 42201, "validation failed", v.Fields)
	case errors.Is(err, audit.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, audit.ErrInvalidCredentials):
		common.Fail(c, http.StatusUnauthorized, 40103, err.Error())
	case errors.Is(err, audit.ErrInvalidTransition):
		common.Fail(c, http.StatusConflict, 40901, err.Error())
	case errors.Is(err, audit.ErrTemplateInUse):
		common.Fail(c, http.StatusConflict, 40902, err.Error())
	case errors.Is(err, audit.ErrTemplateInactive):
		common.Fail(c, http.StatusConflict, 40903, err.Error())
	case errors.Is(err, audit.ErrNoAudio):
		common.Fail(c, http.StatusConflict, 40904, err.Error())
	case errors.Is(err, insight.ErrSessionNotCompleted):
		common.Fail(c, http.StatusConflict, 40905, err.Error())
	case errors.Is(err, audit.ErrAudioDisabled):
		common.Fail(c, http.StatusServiceUnavailable, 50301, err.Error())
	default:
		log.Printf("[HTTP] request_id=%s path=%s err=%v", c.GetString(middleware.RequestIDKey), c.FullPath(), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

func badRequest(c *gin.Context, code int, msg string) {
	common.Fail(c, http.StatusBadRequest, code, msg)
}
