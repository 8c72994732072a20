package scoring

import (
	"strings"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("answer ", n))
}

func TestQualityScore_EmptyTextIsZero(t *testing.T) {
	if got := QualityScore("   ", ptr(1), nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestQualityScore_HundredWordsHighConfidence(t *testing.T) {
	// 20 presence + 36 confidence + 20 length + 10 no-keyword bonus
	got := QualityScore(words(100), ptr(0.9), nil)
	if got != 86 {
		t.Fatalf("expected 86, got %d", got)
	}
}

func TestQualityScore_AllKeywordsMatched(t *testing.T) {
	text := words(98) + " control decisions"
	got := QualityScore(text, ptr(0.9), []string{"Control", "decisions"})
	if got != 96 {
		t.Fatalf("expected 96, got %d", got)
	}
}

func TestQualityScore_PartialKeywords(t *testing.T) {
	text := words(99) + " control"
	got := QualityScore(text, ptr(0.5), []string{"control", "agency"})
	// 20 + 20 + 20 + 10
	if got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}
}

func TestQualityScore_LengthOutsideWindow(t *testing.T) {
	got := QualityScore("yes", nil, nil)
	// presence + keyword bonus only
	if got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	got = QualityScore(words(301), ptr(1), nil)
	if got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}
}

func TestQualityScore_AlwaysInRange(t *testing.T) {
	confs := []*float64{nil, ptr(0), ptr(0.3), ptr(0.77), ptr(1)}
	for _, n := range []int{0, 1, 9, 10, 50, 100, 150, 299, 300, 500} {
		for _, c := range confs {
			s := QualityScore(words(n), c, []string{"answer", "missing"})
			if s < 0 || s > 100 {
				t.Fatalf("score %d out of range for n=%d", s, n)
			}
		}
	}
}

func TestRound1_HalfAwayFromZero(t *testing.T) {
	cases := map[float64]float64{
		66.66666: 66.7,
		12.25:    12.3,
		0.04:     0,
		100:      100,
	}
	for in, want := range cases {
		if got := Round1(in); got != want {
			t.Fatalf("Round1(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(2, 3); got != 66.7 {
		t.Fatalf("expected 66.7, got %v", got)
	}
	if got := Percent(1, 0); got != 0 {
		t.Fatalf("expected 0 for empty total, got %v", got)
	}
}

func TestEstimatedDurationSeconds(t *testing.T) {
	if got := EstimatedDurationSeconds(words(25)); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := EstimatedDurationSeconds(""); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
