package insight

import (
	"fmt"
	"sort"
	"time"

	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/scoring"
)

type RiskCounts struct {
	Total          int `json:"total"`
	HighPriority   int `json:"high_priority"`
	MediumPriority int `json:"medium_priority"`
}

type ResponsesSummary struct {
	Total           int `json:"total"`
	HighConfidence  int `json:"high_confidence"`
	RequiringReview int `json:"requiring_review"`
}

// Report is the read model of an insight served to reviewers.
type Report struct {
	SessionID        uint64                 `json:"session_id"`
	TemplateName     string                 `json:"template_name"`
	CompletedAt      *time.Time             `json:"completed_at"`
	DurationMinutes  float64                `json:"duration_minutes"`
	OverallScore     *float64               `json:"overall_score"`
	ComplianceScore  *float64               `json:"compliance_score"`
	RiskLevel        string                 `json:"risk_level"`
	RiskColor        string                 `json:"risk_color"`
	ConfidenceLevel  models.ConfidenceLevel `json:"confidence_level"`
	Summary          string                 `json:"summary"`
	KeyFindings      []string               `json:"key_findings"`
	Risks            RiskCounts             `json:"risks"`
	RiskIndicators   []models.RiskIndicator `json:"risk_indicators"`
	Recommendations  []string               `json:"recommendations"`
	AreasOfConcern   []string               `json:"areas_of_concern"`
	Strengths        []string               `json:"strengths"`
	ActionItems      []models.ActionItem    `json:"action_items"`
	ResponsesSummary ResponsesSummary       `json:"responses_summary"`
}

func buildReport(in *models.AuditInsight, d *snapshot) *Report {
	risks := in.RiskIndicators
	if risks == nil {
		risks = []models.RiskIndicator{}
	}
	return &Report{
		SessionID:       d.session.ID,
		TemplateName:    d.template.Name,
		CompletedAt:     d.session.CompletedAt,
		DurationMinutes: d.durationMinutes(),
		OverallScore:    in.OverallScore,
		ComplianceScore: in.ComplianceScore(),
		RiskLevel:       in.RiskLevel(),
		RiskColor:       in.RiskColor(),
		ConfidenceLevel: in.ConfidenceLevel,
		Summary:         in.Summary,
		KeyFindings:     nonNil(in.KeyFindingsSummary()),
		Risks: RiskCounts{
			Total:          len(in.RiskIndicators),
			HighPriority:   len(in.HighPriorityRisks()),
			MediumPriority: len(in.MediumPriorityRisks()),
		},
		RiskIndicators:  risks,
		Recommendations: nonNil(in.KeyFindings.Recommendations),
		AreasOfConcern:  areasOfConcern(in, d),
		Strengths:       strengths(in, d),
		ActionItems:     actionItems(in, d),
		ResponsesSummary: ResponsesSummary{
			Total:           len(d.responses),
			HighConfidence:  d.highConfidence(),
			RequiringReview: d.requiringClarification(),
		},
	}
}

func areasOfConcern(in *models.AuditInsight, d *snapshot) []string {
	out := []string{}
	for _, r := range in.HighPriorityRisks() {
		out = append(out, r.Description)
	}
	if n := d.lowConfidence(); n > 0 {
		out = append(out, fmt.Sprintf("%d responses with low transcription confidence", n))
	}
	if missing := len(d.questions) - len(d.responses); missing > 0 {
		out = append(out, fmt.Sprintf("%d unanswered questions", missing))
	}
	return out
}

func strengths(in *models.AuditInsight, d *snapshot) []string {
	out := []string{}
	if s := in.OverallScore; s != nil && *s >= 80 {
		out = append(out, fmt.Sprintf("Strong overall audit score (%d%%)", scoring.RoundInt(*s)))
	}
	if len(d.responses) == len(d.questions) {
		out = append(out, "All questions answered completely")
	}
	if float64(d.highConfidence()) > float64(len(d.responses))*0.8 {
		out = append(out, "High-quality audio responses")
	}
	return append(out, in.KeyFindings.Strengths...)
}

// actionItems lists high-priority risks, clarification follow-ups and reviewer items,
// high priority first and otherwise in that order.
func actionItems(in *models.AuditInsight, d *snapshot) []models.ActionItem {
	items := []models.ActionItem{}
	for _, r := range in.HighPriorityRisks() {
		action := r.RecommendedAction
		if action == "" {
			action = "Address " + r.Description
		}
		category := r.Category
		if category == "" {
			category = "risk_mitigation"
		}
		items = append(items, models.ActionItem{Priority: models.SeverityHigh, Action: action, Category: category})
	}
	for i := range d.responses {
		r := &d.responses[i]
		if !r.RequiresClarification {
			continue
		}
		text := ""
		if q := d.question(r.QuestionID); q != nil {
			text = q.Text
		}
		items = append(items, models.ActionItem{
			Priority: models.SeverityMedium,
			Action:   "Clarify response to: " + truncate(text, 50),
			Category: "clarification",
		})
	}
	items = append(items, in.KeyFindings.ActionItems...)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority == models.SeverityHigh && items[j].Priority != models.SeverityHigh
	})
	return items
}

// truncate shortens s to n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
