package monitor

import (
	"context"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

// handoff carries one analysis result from a dispatch goroutine to the router.
type handoff struct {
	epoch          uint64
	participant    chat.Identity
	result         monitor.AnalysisResult
	capturedLength int
}

// handoffQueue is a multi-producer, single-consumer queue backed by a buffered channel.
type handoffQueue struct {
	items chan handoff
}

func newHandoffQueue(size int) *handoffQueue {
	return &handoffQueue{items: make(chan handoff, size)}
}

// push blocks until there is room or ctx is done.
func (q *handoffQueue) push(ctx context.Context, item handoff) bool {
	select {
	case q.items <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// tryPop never blocks; ok is false when the queue is empty.
func (q *handoffQueue) tryPop() (handoff, bool) {
	select {
	case item := <-q.items:
		return item, true
	default:
		return handoff{}, false
	}
}

func (q *handoffQueue) drain() int {
	dropped := 0
	for {
		if _, ok := q.tryPop(); !ok {
			return dropped
		}
		dropped++
	}
}

func (q *handoffQueue) len() int {
	return len(q.items)
}
