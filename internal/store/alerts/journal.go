package alerts

import (
	"log"
	"sync"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

type journalOp struct {
	alert *monitor.Alert
	clear bool
	flush chan struct{}
}

// Journal is an alert sink that writes to a Store from its own goroutine, so
// delivering an alert never waits on disk.
type Journal struct {
	store *Store
	ops   chan journalOp
	wg    sync.WaitGroup
	once  sync.Once
}

// NewJournal starts the writer goroutine.
func NewJournal(store *Store, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 64
	}
	j := &Journal{store: store, ops: make(chan journalOp, buffer)}
	j.wg.Add(1)
	go j.run()
	return j
}

func (j *Journal) run() {
	defer j.wg.Done()
	for op := range j.ops {
		switch {
		case op.flush != nil:
			close(op.flush)
		case op.clear:
			if err := j.store.Clear(); err != nil {
				log.Printf("[journal] clear failed: %v", err)
			}
		case op.alert != nil:
			if err := j.store.Append(*op.alert); err != nil {
				log.Printf("[journal] append alert %s failed: %v", op.alert.ID, err)
			}
		}
	}
}

// DeliverAlert queues the alert for writing. Alerts are dropped when the
// writer is too far behind.
func (j *Journal) DeliverAlert(alert monitor.Alert) {
	select {
	case j.ops <- journalOp{alert: &alert}:
	default:
		log.Printf("[journal] writer backlog full, dropping alert %s", alert.ID)
	}
}

// Reset queues a clear behind every alert delivered before it.
func (j *Journal) Reset() {
	j.ops <- journalOp{clear: true}
}

// Flush waits until every queued operation has been written.
func (j *Journal) Flush() {
	done := make(chan struct{})
	j.ops <- journalOp{flush: done}
	<-done
}

// History returns the stored alerts, see Store.List.
func (j *Journal) History(limit int) ([]monitor.Alert, error) {
	return j.store.List(limit)
}

// Close drains pending writes and stops the writer. It does not close the store.
func (j *Journal) Close() {
	j.once.Do(func() {
		close(j.ops)
		j.wg.Wait()
	})
}
