package monitor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
)

// dispatchJob is a window captured on the primary loop for analysis.
type dispatchJob struct {
	epoch       uint64
	participant chat.Identity
	window      []chat.Turn
	logLength   int
}

// Dispatcher runs analyzer calls off the interactive path. Every accepted job
// gets its own goroutine; completion order is not guaranteed.
type Dispatcher struct {
	analyzer Analyzer
	timeout  time.Duration
	suffix   string
	slots    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewDispatcher creates a dispatcher. maxInFlight <= 0 means unbounded.
func NewDispatcher(analyzer Analyzer, timeout time.Duration, maxInFlight int, usernameSuffix string) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		analyzer: analyzer,
		timeout:  timeout,
		suffix:   usernameSuffix,
		ctx:      ctx,
		cancel:   cancel,
	}
	if maxInFlight > 0 {
		d.slots = make(chan struct{}, maxInFlight)
	}
	return d
}

// Dispatch starts the analysis of job in the background and calls onComplete
// only when a result was obtained. It returns false when the job was not started.
func (d *Dispatcher) Dispatch(job dispatchJob, onComplete func(handoff)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if d.slots != nil {
		select {
		case d.slots <- struct{}{}:
		default:
			log.Printf("[dispatch] skipped window for %s: %d analyses already in flight", job.participant, cap(d.slots))
			return false
		}
	}

	d.wg.Add(1)
	d.inFlight.Add(1)
	go d.run(job, onComplete)
	return true
}

func (d *Dispatcher) run(job dispatchJob, onComplete func(handoff)) {
	defer d.wg.Done()
	defer d.inFlight.Add(-1)
	if d.slots != nil {
		defer func() { <-d.slots }()
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	username := string(job.participant) + d.suffix
	log.Printf("[dispatch] analyzing window of %d messages for %s", len(job.window), username)

	result, err := d.analyzer.Analyze(ctx, username, job.window)
	if err != nil {
		log.Printf("[dispatch] analysis failed for %s, window dropped: %v", username, err)
		return
	}

	onComplete(handoff{
		epoch:          job.epoch,
		participant:    job.participant,
		result:         result,
		capturedLength: job.logLength,
	})
}

// InFlight returns the number of running analyses.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Stop refuses new work and waits up to grace for running analyses. Analyses
// still running after grace are cancelled and abandoned.
func (d *Dispatcher) Stop(grace time.Duration) {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		log.Printf("[dispatch] %d analyses still running after %s, abandoning", d.InFlight(), grace)
	}
	d.cancel()
}
