// Package scoring holds the text heuristics applied to transcribed answers:
// quality score, keyword and theme tallies, and a word-list sentiment.
package scoring

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
)

// Round1 rounds half away from zero to one decimal place.
func Round1(x float64) float64 {
	return decimal.NewFromFloat(x).Round(1).InexactFloat64()
}

// RoundInt rounds half away from zero to the nearest integer.
func RoundInt(x float64) int {
	return int(decimal.NewFromFloat(x).Round(0).IntPart())
}

// Percent returns part/total*100 rounded to one decimal; 0 when total is zero.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(part) / float64(total) * 100)
}

func WordCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return len(whitespace.Split(text, -1))
}

// Words lower-cases text and splits it on non-word runs.
func Words(text string) []string {
	var out []string
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// QualityScore rates one answer in [0, 100]:
//
//	20 for having text
//	confidence * 40
//	up to 20 for length, peaking at 100 words (only for 10..300 words)
//	matched keyword share * 20, or a flat 10 when the question lists none
func QualityScore(text string, confidence *float64, expectedKeywords []string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	score := 20.0
	if confidence != nil {
		score += *confidence * 40
	}

	words := WordCount(text)
	if words >= 10 && words <= 300 {
		score += math.Max(20-math.Abs(float64(words-100))*0.1, 0)
	}

	if len(expectedKeywords) > 0 {
		lower := strings.ToLower(text)
		matched := 0
		for _, kw := range expectedKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		score += float64(matched) / float64(len(expectedKeywords)) * 20
	} else {
		score += 10
	}

	return clamp(RoundInt(score), 0, 100)
}

// EstimatedDurationSeconds assumes ~150 spoken words per minute.
func EstimatedDurationSeconds(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return RoundInt(float64(WordCount(text)) / 2.5)
}

type WordCountEntry struct {
	Word  string
	Count int
}

// Tally counts words longer than minLen that are not stop words and returns the
// top n by frequency; ties keep first-appearance order.
func Tally(words []string, stop map[string]struct{}, minLen, n int) []WordCountEntry {
	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		if len([]rune(w)) <= minLen {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	out := make([]WordCountEntry, 0, len(order))
	for _, w := range order {
		out = append(out, WordCountEntry{Word: w, Count: counts[w]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
