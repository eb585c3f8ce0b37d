package chat

import (
	"time"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
)

// Log is the append-only message log of a session.
// It is not safe for concurrent use; the session controller is its only writer.
type Log struct {
	turns []chat.Turn
}

// NewLog bootstraps an empty log.
func NewLog() *Log {
	return &Log{turns: make([]chat.Turn, 0, 16)}
}

// Append records a new turn and returns it. Sequence numbers start at 1.
func (l *Log) Append(sender chat.Identity, message string, at time.Time) chat.Turn {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	turn := chat.Turn{
		Sender:    sender,
		Message:   message,
		Sequence:  len(l.turns) + 1,
		CreatedAt: at,
	}
	l.turns = append(l.turns, turn)
	return turn
}

// Len returns the number of turns in the log.
func (l *Log) Len() int {
	return len(l.turns)
}

// Tail returns a copy of the last n turns, or the whole log when it is shorter.
func (l *Log) Tail(n int) []chat.Turn {
	start := len(l.turns) - n
	if start < 0 {
		start = 0
	}
	copied := make([]chat.Turn, len(l.turns)-start)
	copy(copied, l.turns[start:])
	return copied
}

// Turns returns a copy of the full log.
func (l *Log) Turns() []chat.Turn {
	return l.Tail(len(l.turns))
}

// Reset drops every turn.
func (l *Log) Reset() {
	l.turns = make([]chat.Turn, 0, 16)
}
