package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/common"
	"github.com/suPer8Hu/voice-audit/internal/insight"
	"github.com/suPer8Hu/voice-audit/internal/models"
)

func (h *Handler) GetInsight(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	report, err := h.Insights.Report(c.Request.Context(), sess)
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, report)
}

type updateInsightReq struct {
	Summary        string                 `json:"summary"`
	KeyFindings    models.KeyFindings     `json:"key_findings"`
	RiskIndicators []models.RiskIndicator `json:"risk_indicators"`
	OverallScore   *float64               `json:"overall_score"`
}

// UpdateInsight replaces every reviewer-editable field of the session's insight.
func (h *Handler) UpdateInsight(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req updateInsightReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, 10001, "invalid json")
		return
	}
	in, err := h.Insights.UpdateInsights(c.Request.Context(), sess, insight.UpdateInput{
		Summary:        req.Summary,
		KeyFindings:    req.KeyFindings,
		RiskIndicators: req.RiskIndicators,
		OverallScore:   req.OverallScore,
	})
	if err != nil {
		fail(c, err)
		return
	}
	common.OK(c, in)
}
