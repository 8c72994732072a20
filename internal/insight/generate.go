package insight

import (
	"fmt"
	"time"

	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/scoring"
)

const (
	lowCompletionRate  = 80
	lowConfidenceShare = 0.3
	strongCompletion   = 90
)

// snapshot is a completed session with everything generation and reporting read.
type snapshot struct {
	session   *models.AuditSession
	template  *models.AuditTemplate
	questions []models.Question
	responses []models.Response
	now       time.Time
}

func (d *snapshot) question(id uint64) *models.Question {
	for i := range d.questions {
		if d.questions[i].ID == id {
			return &d.questions[i]
		}
	}
	return nil
}

func (d *snapshot) completionRate() float64 {
	return scoring.Percent(len(d.responses), len(d.questions))
}

func (d *snapshot) durationMinutes() float64 {
	return scoring.Round1(d.session.DurationMinutes(d.now))
}

func (d *snapshot) quality(r *models.Response) int {
	var keywords []string
	if q := d.question(r.QuestionID); q != nil {
		keywords = q.ExpectedKeywords
	}
	return scoring.QualityScore(r.TranscribedText, r.TranscriptionConfidence, keywords)
}

// meanQuality averages the quality score over all responses, 0 without any.
func (d *snapshot) meanQuality() float64 {
	if len(d.responses) == 0 {
		return 0
	}
	sum := 0
	for i := range d.responses {
		sum += d.quality(&d.responses[i])
	}
	return float64(sum) / float64(len(d.responses))
}

// meanConfidence averages the confidences that are present.
func (d *snapshot) meanConfidence() float64 {
	sum, n := 0.0, 0
	for i := range d.responses {
		if c := d.responses[i].TranscriptionConfidence; c != nil {
			sum += *c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (d *snapshot) count(pred func(*models.Response) bool) int {
	n := 0
	for i := range d.responses {
		if pred(&d.responses[i]) {
			n++
		}
	}
	return n
}

func (d *snapshot) lowConfidence() int {
	return d.count((*models.Response).IsLowConfidence)
}

func (d *snapshot) highConfidence() int {
	return d.count((*models.Response).IsHighConfidence)
}

func (d *snapshot) requiringClarification() int {
	return d.count(func(r *models.Response) bool { return r.RequiresClarification })
}

func (d *snapshot) texts() []string {
	out := make([]string, 0, len(d.responses))
	for i := range d.responses {
		out = append(out, d.responses[i].TranscribedText)
	}
	return out
}

func summarize(d *snapshot) string {
	strength := "adequate"
	if d.completionRate() > strongCompletion {
		strength = "strong"
	}
	return fmt.Sprintf("Completed %s audit with %d responses in %.1f minutes. "+
		"Overall compliance appears %s with %d items requiring follow-up.",
		d.template.Name, len(d.responses), d.durationMinutes(), strength, d.requiringClarification())
}

func keyFindings(d *snapshot) models.KeyFindings {
	completion := d.completionRate()
	quality := scoring.Round1(d.meanQuality())

	var themes []models.Theme
	for _, e := range scoring.Themes(d.texts()) {
		themes = append(themes, models.Theme{Theme: e.Word, Frequency: e.Count})
	}

	kf := models.KeyFindings{
		CompletionRate:         completion,
		AverageResponseQuality: quality,
		CommonThemes:           themes,
		ComplianceIndicators: &models.ComplianceIndicators{
			Completeness: completion,
			Quality:      quality,
			Timeliness:   d.durationMinutes() <= float64(d.template.EstimatedDurationMinutes),
		},
	}

	kf.Highlights = append(kf.Highlights,
		fmt.Sprintf("%d of %d questions answered (%.1f%%)", len(d.responses), len(d.questions), completion),
		fmt.Sprintf("Average response quality %.1f/100", quality),
	)
	if len(themes) > 0 {
		kf.Highlights = append(kf.Highlights, fmt.Sprintf("Most common theme: %s (%d mentions)", themes[0].Theme, themes[0].Frequency))
	}
	if n := d.requiringClarification(); n > 0 {
		kf.Highlights = append(kf.Highlights, fmt.Sprintf("%d responses flagged for clarification", n))
	}
	if !kf.ComplianceIndicators.Timeliness {
		kf.Highlights = append(kf.Highlights, fmt.Sprintf("Took longer than the estimated %d minutes", d.template.EstimatedDurationMinutes))
	}
	return kf
}

func identifyRisks(d *snapshot) []models.RiskIndicator {
	risks := []models.RiskIndicator{}
	if d.completionRate() < lowCompletionRate {
		risks = append(risks, models.RiskIndicator{
			Category:          "completion",
			Severity:          models.SeverityMedium,
			Description:       "Incomplete audit responses",
			RecommendedAction: "Follow up on missing responses",
		})
	}
	if float64(d.lowConfidence()) > float64(len(d.responses))*lowConfidenceShare {
		risks = append(risks, models.RiskIndicator{
			Category:          "data_quality",
			Severity:          models.SeverityHigh,
			Description:       "Multiple responses with poor audio quality",
			RecommendedAction: "Re-record unclear responses",
		})
	}
	return risks
}

// overallScore weighs completion 40%, mean quality 40% and mean confidence 20%.
func overallScore(d *snapshot) float64 {
	if len(d.responses) == 0 {
		return 0
	}
	return scoring.Round1(d.completionRate()*0.4 + d.meanQuality()*0.4 + d.meanConfidence()*100*0.2)
}

// ConfidenceLevel classifies an insight from its score and number of risks.
func ConfidenceLevel(score *float64, risks int) models.ConfidenceLevel {
	switch {
	case score != nil && *score >= 80 && risks == 0:
		return models.ConfidenceHigh
	case score != nil && *score >= 60 && risks <= 2:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func build(d *snapshot) *models.AuditInsight {
	score := overallScore(d)
	risks := identifyRisks(d)
	return &models.AuditInsight{
		AuditSessionID:  d.session.ID,
		Summary:         summarize(d),
		KeyFindings:     keyFindings(d),
		RiskIndicators:  risks,
		OverallScore:    &score,
		ConfidenceLevel: ConfidenceLevel(&score, len(risks)),
	}
}
