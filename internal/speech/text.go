package speech

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var speechReplacements = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`\bDr\.`), "Doctor"},
	{regexp.MustCompile(`\bMr\.`), "Mister"},
	{regexp.MustCompile(`\bMrs\.`), "Misses"},
	{regexp.MustCompile(`\bMs\.`), "Miss"},
	{regexp.MustCompile(`\betc\.`), "etcetera"},
	{regexp.MustCompile(`\bi\.e\.`), "that is"},
	{regexp.MustCompile(`\be\.g\.`), "for example"},
}

// OptimizeText rewrites question text for text-to-speech: abbreviations are
// spelled out, questions get a trailing pause, and a final period is ensured.
func OptimizeText(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	out := text
	for _, r := range speechReplacements {
		out = r.re.ReplaceAllString(out, r.with)
	}
	out = strings.TrimSpace(strings.ReplaceAll(out, "?", "? ... "))

	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "?") && !strings.HasSuffix(out, "!") {
		out += "."
	}
	return out
}

// EstimatedPlaybackSeconds assumes roughly ten characters per second of speech.
func EstimatedPlaybackSeconds(text string) float64 {
	return decimal.NewFromInt(int64(len(text))).Div(decimal.NewFromInt(10)).Round(1).InexactFloat64()
}
