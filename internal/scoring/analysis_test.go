package scoring

import "testing"

func TestKeywords_DropsStopWordsAndShortWords(t *testing.T) {
	got := Keywords("The team shipped the release, and the team celebrated with cake.")
	want := []string{"team", "shipped", "release", "celebrated", "cake"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestThemes_CountsAcrossAnswers(t *testing.T) {
	got := Themes([]string{"Budget planning matters", "planning for growth", "", "growth and planning"})
	if len(got) == 0 || got[0].Word != "planning" || got[0].Count != 3 {
		t.Fatalf("unexpected top theme: %+v", got)
	}
	if got[1].Word != "growth" || got[1].Count != 2 {
		t.Fatalf("expected growth twice, got %+v", got[1])
	}
	// equal counts keep first-appearance order
	if got[2].Word != "budget" || got[3].Word != "matters" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestThemes_Empty(t *testing.T) {
	if got := Themes([]string{"", "  "}); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	cases := map[string]Sentiment{
		"It was a great day, I am happy":         SentimentPositive,
		"terrible terrible terrible, but good":   SentimentNeutral,
		"No, I disagree and I was disappointed":  SentimentNegative,
		"":                                       SentimentNeutral,
		"We met the quarterly numbers on Friday": SentimentNeutral,
	}
	for text, want := range cases {
		if got := AnalyzeSentiment(text); got != want {
			t.Fatalf("AnalyzeSentiment(%q) = %s, want %s", text, got, want)
		}
	}
}
