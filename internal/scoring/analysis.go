package scoring

import "strings"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

var (
	keywordStopWords = set("the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by")
	themeStopWords   = set("the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
		"is", "are", "was", "were")

	positiveWords = set("good", "great", "excellent", "satisfied", "happy", "pleased", "positive", "yes", "agree")
	negativeWords = set("bad", "terrible", "awful", "disappointed", "unhappy", "negative", "no", "disagree")
)

// Keywords returns up to ten frequent words (longer than three letters) from one answer.
func Keywords(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	top := Tally(Words(text), keywordStopWords, 3, 10)
	out := make([]string, 0, len(top))
	for _, e := range top {
		out = append(out, e.Word)
	}
	return out
}

// Themes tallies words longer than four letters across all answers of a session.
func Themes(texts []string) []WordCountEntry {
	all := strings.TrimSpace(strings.Join(texts, " "))
	if all == "" {
		return nil
	}
	return Tally(Words(all), themeStopWords, 4, 10)
}

// AnalyzeSentiment compares how many distinct positive and negative words occur.
func AnalyzeSentiment(text string) Sentiment {
	if strings.TrimSpace(text) == "" {
		return SentimentNeutral
	}
	seen := make(map[string]struct{})
	pos, neg := 0, 0
	for _, w := range Words(text) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
