package monitor

import (
	"fmt"
	"time"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
)

// AnalysisResult is what the external sentiment analyzer returns for a window.
type AnalysisResult struct {
	Sentiment   string `json:"sentiment"`
	Explanation string `json:"explanation"`
	AlertNeeded bool   `json:"alert_needed"`
}

// MessageRange is a 1-based inclusive range of log positions.
type MessageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Alert is delivered to the parent monitor for every analysis result.
type Alert struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Participant  chat.Identity `json:"participant"`
	Sentiment    string        `json:"sentiment"`
	Explanation  string        `json:"explanation"`
	AlertNeeded  bool          `json:"alertNeeded"`
	MessageRange MessageRange  `json:"messageRange"`
	WindowSize   int           `json:"windowSize"`
}

// RangeLabel renders the range the way the monitor displays it.
func (a Alert) RangeLabel() string {
	return fmt.Sprintf("Messages %d - %d (Window of %d)", a.MessageRange.Start, a.MessageRange.End, a.WindowSize)
}
