package sentiment

import "testing"

func TestAnalyzeNeutralConversation(t *testing.T) {
	decision := Analyze([]string{"see you at school", "ok"})
	if decision.Sentiment != Neutral {
		t.Fatalf("expected neutral sentiment, got %s", decision.Sentiment)
	}
	if decision.AlertNeeded() {
		t.Fatal("neutral conversation should not need an alert")
	}
}

func TestAnalyzePositiveWithExclamations(t *testing.T) {
	decision := Analyze([]string{"that was awesome!!", "haha thanks"})
	if decision.Sentiment != Positive {
		t.Fatalf("expected positive sentiment, got %s", decision.Sentiment)
	}
	if decision.Score < 9 {
		t.Fatalf("expected boosted score, got %d", decision.Score)
	}
}

func TestAnalyzeConcerningWinsOverPositive(t *testing.T) {
	decision := Analyze([]string{"you're awesome", "don't tell your parents, it's our secret"})
	if decision.Sentiment != Concerning {
		t.Fatalf("expected concerning sentiment, got %s", decision.Sentiment)
	}
	if !decision.AlertNeeded() {
		t.Fatal("concerning conversation should need an alert")
	}
	if decision.Explanation() == "" {
		t.Fatal("expected explanation")
	}
}

func TestAnalyzeNegative(t *testing.T) {
	decision := Analyze([]string{"I'm so sad and lonely today"})
	if decision.Sentiment != Negative {
		t.Fatalf("expected negative sentiment, got %s", decision.Sentiment)
	}
}

func TestAnalyzeIgnoresKeywordsInsideWords(t *testing.T) {
	benign := []string{
		"I studied for the test",
		"my skill tree is done",
		"whatever, see you",
		"mom made dinner",
	}
	for _, message := range benign {
		decision := Analyze([]string{message})
		if decision.Sentiment != Neutral {
			t.Fatalf("%q: expected neutral sentiment, got %s (matches=%v)", message, decision.Sentiment, decision.Matches)
		}
		if decision.AlertNeeded() {
			t.Fatalf("%q: should not need an alert", message)
		}
	}
}

func TestAnalyzeMatchesWholeWordsAndPhrases(t *testing.T) {
	decision := Analyze([]string{"I hate this, I want to DIE."})
	if decision.Sentiment != Concerning {
		t.Fatalf("expected concerning sentiment, got %s", decision.Sentiment)
	}

	decision = Analyze([]string{"Don’t tell mom, ok?"})
	if decision.Sentiment != Concerning {
		t.Fatalf("expected curly apostrophe phrase to match, got %s", decision.Sentiment)
	}
}

func TestAnalyzeMatchesHanKeywordsBySubstring(t *testing.T) {
	decision := Analyze([]string{"今天我很开心"})
	if decision.Sentiment != Positive {
		t.Fatalf("expected positive sentiment, got %s", decision.Sentiment)
	}
}
