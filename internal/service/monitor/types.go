package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

var (
	ErrEmptyMessage      = errors.New("message is empty")
	ErrSessionStopped    = errors.New("session stopped")
	ErrSessionNotStarted = errors.New("session not started")
)

// Analyzer is the external sentiment analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, participant string, turns []chat.Turn) (monitor.AnalysisResult, error)
}

// ChatSurface receives messages sent by the other participant.
type ChatSurface interface {
	DisplayIncoming(sender chat.Identity, message string)
	Clear()
}

// AlertSink is the parent monitor side of the session.
type AlertSink interface {
	DeliverAlert(alert monitor.Alert)
	Reset()
}

// MultiSink fans every call out to each sink in order.
type MultiSink []AlertSink

func (m MultiSink) DeliverAlert(alert monitor.Alert) {
	for _, sink := range m {
		sink.DeliverAlert(alert)
	}
}

func (m MultiSink) Reset() {
	for _, sink := range m {
		sink.Reset()
	}
}

// Config controls batching, dispatch and shutdown of a monitored session.
type Config struct {
	Participants    chat.Roster
	WindowSize      int
	PollInterval    time.Duration
	AnalysisTimeout time.Duration
	ShutdownGrace   time.Duration
	// MaxInFlight caps concurrent analyses. Zero leaves dispatch unbounded.
	MaxInFlight    int
	QueueSize      int
	UsernameSuffix string
}

func (c Config) withDefaults() Config {
	if len(c.Participants) == 0 {
		c.Participants = chat.Roster{"Alice", "Bob"}
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = 30 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	if c.MaxInFlight < 0 {
		c.MaxInFlight = 0
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	return c
}
