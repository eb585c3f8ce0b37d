package chat

import (
	"errors"
	"time"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
)

// ErrInvalidWindowSize is returned for a non-positive window size.
var ErrInvalidWindowSize = errors.New("window size must be positive")

// NotAnalyzed is the LastAnalyzedIndex of a log that has never been analyzed.
const NotAnalyzed = -1

// WindowState tracks when the log was last analyzed.
type WindowState struct {
	WindowSize                int `json:"windowSize"`
	LastAnalyzedIndex         int `json:"lastAnalyzedIndex"`
	MessagesSinceLastAnalysis int `json:"messagesSinceLastAnalysis"`
}

// Selector owns the message log together with its analysis window state and
// decides when a batch of messages should be analyzed.
//
// The trigger fires once per block of WindowSize new messages, while the
// window handed to the analyzer is always the trailing WindowSize messages.
// A Selector must only be used from a single goroutine.
type Selector struct {
	log   *Log
	state WindowState
}

// NewSelector creates a selector over an empty log.
func NewSelector(windowSize int) (*Selector, error) {
	if windowSize <= 0 {
		return nil, ErrInvalidWindowSize
	}
	return &Selector{
		log: NewLog(),
		state: WindowState{
			WindowSize:        windowSize,
			LastAnalyzedIndex: NotAnalyzed,
		},
	}, nil
}

// Append adds a turn to the log and counts it towards the next analysis.
func (s *Selector) Append(sender chat.Identity, message string, at time.Time) chat.Turn {
	turn := s.log.Append(sender, message, at)
	s.state.MessagesSinceLastAnalysis++
	return turn
}

// CurrentWindow returns a snapshot of the trailing WindowSize turns.
func (s *Selector) CurrentWindow() []chat.Turn {
	return s.log.Tail(s.state.WindowSize)
}

// ShouldTrigger reports whether an analysis should be dispatched now.
func (s *Selector) ShouldTrigger() bool {
	// The first window fires exactly at the WindowSize-th message. Once the log
	// has grown past that without a successful analysis only the counter applies.
	if s.state.LastAnalyzedIndex == NotAnalyzed && s.log.Len() == s.state.WindowSize {
		return true
	}
	return s.state.MessagesSinceLastAnalysis >= s.state.WindowSize
}

// MarkAnalyzed records a successful analysis at the given log length.
func (s *Selector) MarkAnalyzed(logLength int) {
	s.state.LastAnalyzedIndex = logLength - 1
	s.state.MessagesSinceLastAnalysis = 0
}

// Reset clears the log and the window state together.
func (s *Selector) Reset() {
	s.log.Reset()
	s.state.LastAnalyzedIndex = NotAnalyzed
	s.state.MessagesSinceLastAnalysis = 0
}

// State returns a copy of the window state.
func (s *Selector) State() WindowState {
	return s.state
}

// Len returns the log length.
func (s *Selector) Len() int {
	return s.log.Len()
}

// WindowSize returns the configured window size.
func (s *Selector) WindowSize() int {
	return s.state.WindowSize
}

// Turns returns a copy of the whole log.
func (s *Selector) Turns() []chat.Turn {
	return s.log.Turns()
}
