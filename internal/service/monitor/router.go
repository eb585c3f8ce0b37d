package monitor

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

// Router turns queued analysis results into alerts for the monitor.
// Poll must be called from the session's primary loop.
type Router struct {
	queue      *handoffQueue
	sink       AlertSink
	windowSize int
	now        func() time.Time
}

func newRouter(queue *handoffQueue, sink AlertSink, windowSize int) *Router {
	return &Router{
		queue:      queue,
		sink:       sink,
		windowSize: windowSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Poll pops at most one result. An empty queue is the normal idle state.
func (r *Router) Poll(epoch uint64, logLength int) (monitor.Alert, bool) {
	item, ok := r.queue.tryPop()
	if !ok {
		return monitor.Alert{}, false
	}

	if item.epoch != epoch {
		log.Printf("[router] discarded result for %s from epoch %d (current %d)", item.participant, item.epoch, epoch)
		return monitor.Alert{}, false
	}

	// The range is computed from the log length now, not at dispatch time.
	messageRange := RangeFor(logLength, r.windowSize)
	if item.capturedLength != logLength {
		log.Printf("[router] range drift for %s: window captured at %d messages, reporting %d-%d",
			item.participant, item.capturedLength, messageRange.Start, messageRange.End)
	}

	alert := monitor.Alert{
		ID:           uuid.NewString(),
		Timestamp:    r.now(),
		Participant:  item.participant,
		Sentiment:    item.result.Sentiment,
		Explanation:  item.result.Explanation,
		AlertNeeded:  item.result.AlertNeeded,
		MessageRange: messageRange,
		WindowSize:   r.windowSize,
	}

	if r.sink != nil {
		r.sink.DeliverAlert(alert)
	}
	log.Printf("[router] analysis results for messages %d-%d: %s", messageRange.Start, messageRange.End, alert.Sentiment)
	return alert, true
}

// RangeFor returns the 1-based range covered by the trailing window of a log.
func RangeFor(logLength, windowSize int) monitor.MessageRange {
	start := logLength - windowSize + 1
	if start < 1 {
		start = 1
	}
	return monitor.MessageRange{Start: start, End: logLength}
}
