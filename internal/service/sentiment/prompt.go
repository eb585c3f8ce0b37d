package sentiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

var (
	// ErrMalformedResult is returned when the model reply is not a usable result.
	ErrMalformedResult = errors.New("malformed analysis result")
	// ErrAnalyzerUnavailable is returned when a provider lacks its model or credentials.
	ErrAnalyzerUnavailable = errors.New("analyzer unavailable")
)

// systemPrompt must not contain curly braces: the eino FString template would
// treat them as placeholders.
const systemPrompt = "You are a child-safety assistant that reviews short chat excerpts for a parent. " +
	"Read the conversation window and judge the emotional tone of the monitored participant and whether the parent should be alerted " +
	"(bullying, self-harm, grooming, requests for personal information or secrecy, threats). " +
	"Reply with a single JSON object only, with the fields: sentiment (one of positive, neutral, negative, concerning), " +
	"explanation (one or two sentences for the parent), alert_needed (true or false). Do not output anything else."

const userPromptTemplate = "Monitored participant: {participant}\n\nConversation window (oldest first):\n{conversation}\n\nReturn the JSON object."

// renderUserPrompt fills the template for clients that do not use eino templates.
func renderUserPrompt(participant, conversation string) string {
	return strings.NewReplacer("{participant}", participant, "{conversation}", conversation).Replace(userPromptTemplate)
}

// FormatConversation renders turns as "Sender: message" lines.
func FormatConversation(turns []chat.Turn) string {
	if len(turns) == 0 {
		return "(no messages)"
	}

	var builder strings.Builder
	for i, turn := range turns {
		content := strings.TrimSpace(turn.Message)
		if content == "" {
			continue
		}
		builder.WriteString(string(turn.Sender))
		builder.WriteString(": ")
		builder.WriteString(content)
		if i < len(turns)-1 {
			builder.WriteString("\n")
		}
	}
	return builder.String()
}

type resultPayload struct {
	Sentiment   string `json:"sentiment"`
	Explanation string `json:"explanation"`
	AlertNeeded *bool  `json:"alert_needed"`
}

// ParseResult extracts the JSON object from a model reply.
func ParseResult(content string) (monitor.AnalysisResult, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return monitor.AnalysisResult{}, fmt.Errorf("%w: missing json object", ErrMalformedResult)
	}

	payload := &resultPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return monitor.AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}

	sentiment := strings.ToLower(strings.TrimSpace(payload.Sentiment))
	if sentiment == "" {
		return monitor.AnalysisResult{}, fmt.Errorf("%w: empty sentiment", ErrMalformedResult)
	}
	if payload.AlertNeeded == nil {
		return monitor.AnalysisResult{}, fmt.Errorf("%w: alert_needed missing", ErrMalformedResult)
	}

	return monitor.AnalysisResult{
		Sentiment:   sentiment,
		Explanation: strings.TrimSpace(payload.Explanation),
		AlertNeeded: *payload.AlertNeeded,
	}, nil
}
