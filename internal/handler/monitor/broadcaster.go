package monitor

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

// Event is one frame of the monitor stream.
type Event struct {
	Name string
	Data interface{}
}

// Broadcaster is the alert sink of the parent monitor. Every subscriber owns a
// buffered queue of pending events.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]chan Event
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broadcaster{subs: make(map[string]chan Event), buffer: buffer}
}

// Subscribe registers a new subscriber. cancel must be called when done.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// DeliverAlert queues the alert for every subscriber without blocking.
func (b *Broadcaster) DeliverAlert(alert monitor.Alert) {
	b.publish(Event{Name: "alert", Data: alertView(alert)})
}

// Reset drops every pending event and tells subscribers to clear their view.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		dropped := drain(ch)
		if dropped > 0 {
			log.Printf("[monitor] dropped %d pending events for subscriber %s on reset", dropped, id)
		}
		ch <- Event{Name: "reset", Data: map[string]any{"cleared": true}}
	}
}

func (b *Broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.Printf("[monitor] subscriber %s is not keeping up, dropping %s event", id, event.Name)
		}
	}
}

func drain(ch chan Event) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

type alertPayload struct {
	monitor.Alert
	Label string `json:"label"`
}

func alertView(alert monitor.Alert) alertPayload {
	return alertPayload{Alert: alert, Label: alert.RangeLabel()}
}
