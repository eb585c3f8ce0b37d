package sentiment

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Label 表示一段对话的整体情绪倾向。
type Label string

const (
	Neutral    Label = "neutral"
	Positive   Label = "positive"
	Negative   Label = "negative"
	Concerning Label = "concerning"
)

// Decision 给出启发式情绪判断以及命中的关键词。
type Decision struct {
	Sentiment Label
	Score     int
	Matches   []string
}

// AlertNeeded 只有在出现需要家长关注的内容时才为真。
func (d Decision) AlertNeeded() bool {
	return d.Sentiment == Concerning
}

// Explanation 生成给监控端展示的简短说明。
func (d Decision) Explanation() string {
	if len(d.Matches) == 0 {
		return "No notable emotional cues in the recent messages."
	}
	return fmt.Sprintf("Keyword cues (%s): %s", d.Sentiment, strings.Join(d.Matches, ", "))
}

var keywordBuckets = map[Label][]string{
	Positive: {
		"happy", "glad", "great", "awesome", "amazing", "thanks", "thank you", "love", "fun", "lol",
		"haha", "cool", "nice", "excited", "can't wait", "yay", "开心", "高兴", "太好了", "哈哈",
	},
	Negative: {
		"sad", "upset", "angry", "mad", "annoyed", "hate", "cry", "lonely", "bored", "tired",
		"worried", "scared", "afraid", "unhappy", "depressed", "难过", "伤心", "生气", "烦死",
	},
	Concerning: {
		"kill", "hurt myself", "hurt you", "die", "suicide", "stupid", "ugly", "loser", "shut up",
		"don't tell", "dont tell", "our secret", "keep it secret", "send me a photo", "send pics",
		"what's your address", "where do you live", "meet me", "come alone", "password", "bully",
	},
}

// concerning cues win over any amount of positive or negative cues.
var precedence = []Label{Concerning, Negative, Positive}

// Analyze 根据关键词对一组消息打分。
func Analyze(messages []string) Decision {
	scores := make(map[Label]int)
	matched := make(map[Label][]string)
	exclamations := 0

	for _, message := range messages {
		normalized := strings.TrimSpace(strings.ToLower(message))
		if normalized == "" {
			continue
		}
		words := wordSequence(normalized)
		for label, keywords := range keywordBuckets {
			for _, word := range keywords {
				if containsKeyword(normalized, words, word) {
					scores[label] += 3
					matched[label] = append(matched[label], word)
				}
			}
		}
		exclamations += strings.Count(message, "!")
	}

	// 感叹号只放大已有的正负情绪，不单独决定结果。
	if exclamations > 0 {
		if scores[Negative] > scores[Positive] {
			scores[Negative] += exclamations
		} else if scores[Positive] > 0 {
			scores[Positive] += exclamations
		}
	}

	if scores[Concerning] > 0 {
		return decision(Concerning, scores, matched)
	}

	best := Neutral
	bestScore := 0
	for _, label := range precedence[1:] {
		if scores[label] > bestScore {
			best = label
			bestScore = scores[label]
		}
	}
	if bestScore == 0 {
		return Decision{Sentiment: Neutral}
	}
	return decision(best, scores, matched)
}

// wordSequence joins the words of text with single spaces and pads both ends,
// e.g. "Don’t tell!!" -> " don't tell ".
func wordSequence(text string) string {
	text = strings.ReplaceAll(text, "’", "'")
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	return " " + strings.Join(fields, " ") + " "
}

// containsKeyword matches whole words and phrases. Han keywords have no word
// separators and fall back to a substring match.
func containsKeyword(normalized, words, keyword string) bool {
	for _, r := range keyword {
		if unicode.Is(unicode.Han, r) {
			return strings.Contains(normalized, keyword)
		}
	}
	return strings.Contains(words, " "+keyword+" ")
}

func decision(label Label, scores map[Label]int, matched map[Label][]string) Decision {
	words := dedupe(matched[label])
	sort.Strings(words)
	return Decision{Sentiment: label, Score: scores[label], Matches: words}
}

func dedupe(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, word := range words {
		if seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}
