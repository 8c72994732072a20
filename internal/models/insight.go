package models

import (
	"strings"
	"time"
)

type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

type Theme struct {
	Theme     string `json:"theme"`
	Frequency int    `json:"frequency"`
}

type ComplianceIndicators struct {
	Completeness float64 `json:"completeness"`
	Quality      float64 `json:"quality"`
	Timeliness   bool    `json:"timeliness"`
}

type ComplianceScore struct {
	Score *float64 `json:"score,omitempty"`
}

type ActionItem struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Category string `json:"category"`
}

// KeyFindings is stored as a JSON document; generated insights fill the first block,
// reviewers may add the narrative lists through a replace-all update.
type KeyFindings struct {
	CompletionRate         float64               `json:"completion_rate"`
	AverageResponseQuality float64               `json:"average_response_quality"`
	CommonThemes           []Theme               `json:"common_themes,omitempty"`
	ComplianceIndicators   *ComplianceIndicators `json:"compliance_indicators,omitempty"`

	Compliance          *ComplianceScore `json:"compliance,omitempty"`
	Highlights          []string         `json:"highlights,omitempty"`
	Strengths           []string         `json:"strengths,omitempty"`
	AreasForImprovement []string         `json:"areas_for_improvement,omitempty"`
	Recommendations     []string         `json:"recommendations,omitempty"`
	ActionItems         []ActionItem     `json:"action_items,omitempty"`
}

type RiskIndicator struct {
	Category          string `json:"category"`
	Severity          string `json:"severity"`
	Description       string `json:"description"`
	RecommendedAction string `json:"recommended_action,omitempty"`
}

type AuditInsight struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AuditSessionID  uint64          `gorm:"uniqueIndex;not null" json:"audit_session_id"`
	Summary         string          `gorm:"type:text;not null" json:"summary"`
	KeyFindings     KeyFindings     `gorm:"type:json;serializer:json" json:"key_findings"`
	RiskIndicators  []RiskIndicator `gorm:"type:json;serializer:json" json:"risk_indicators"`
	OverallScore    *float64        `gorm:"index" json:"overall_score"`
	ConfidenceLevel ConfidenceLevel `gorm:"type:varchar(8);index;not null" json:"confidence_level"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (AuditInsight) TableName() string { return "audit_insights" }

// Validate checks the insight against the session it belongs to.
func (i *AuditInsight) Validate(session *AuditSession) error {
	v := &ValidationError{}
	if session == nil {
		v.Add("audit_session", "must exist")
	} else if !session.Completed() {
		v.Add("audit_session", "must be completed before generating insights")
	}
	if strings.TrimSpace(i.Summary) == "" {
		v.Add("summary", "can't be blank")
	}
	if s := i.OverallScore; s != nil && (*s < 0 || *s > 100) {
		v.Add("overall_score", "must be in 0.0..100.0")
	}
	switch i.ConfidenceLevel {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
	default:
		v.Add("confidence_level", "can't be blank")
	}
	return v.OrNil()
}

func (i *AuditInsight) risksWithSeverity(severity string) []RiskIndicator {
	var out []RiskIndicator
	for _, r := range i.RiskIndicators {
		if r.Severity == severity {
			out = append(out, r)
		}
	}
	return out
}

func (i *AuditInsight) HighPriorityRisks() []RiskIndicator {
	return i.risksWithSeverity(SeverityHigh)
}

func (i *AuditInsight) MediumPriorityRisks() []RiskIndicator {
	return i.risksWithSeverity(SeverityMedium)
}

func (i *AuditInsight) HasRisks() bool { return len(i.RiskIndicators) > 0 }

// RiskLevel buckets the overall score: low at 80 and above (or unscored), high below 40.
func (i *AuditInsight) RiskLevel() string {
	if i.OverallScore == nil || *i.OverallScore >= 80 {
		return "low"
	}
	if *i.OverallScore < 40 {
		return "high"
	}
	return "medium"
}

func (i *AuditInsight) RiskColor() string {
	switch i.RiskLevel() {
	case "low":
		return "green"
	case "medium":
		return "yellow"
	default:
		return "red"
	}
}

func (i *AuditInsight) HasHighRiskIndicators() bool {
	if len(i.HighPriorityRisks()) > 0 {
		return true
	}
	return i.OverallScore != nil && *i.OverallScore < 40
}

// ComplianceScore prefers an explicit compliance score from the findings.
func (i *AuditInsight) ComplianceScore() *float64 {
	if c := i.KeyFindings.Compliance; c != nil && c.Score != nil {
		return c.Score
	}
	return i.OverallScore
}

// KeyFindingsSummary returns at most five highlight lines.
func (i *AuditInsight) KeyFindingsSummary() []string {
	h := i.KeyFindings.Highlights
	if len(h) > 5 {
		h = h[:5]
	}
	return h
}
