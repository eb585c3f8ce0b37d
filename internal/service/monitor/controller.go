package monitor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-monitor/backend/internal/service/chat"
)

// State is a read-only view of a session.
type State struct {
	Turns    []chat.Turn             `json:"turns"`
	Window   chatservice.WindowState `json:"window"`
	Epoch    uint64                  `json:"epoch"`
	InFlight int                     `json:"inFlight"`
	Pending  int                     `json:"pending"`
}

// Controller coordinates a two-party chat session with background analysis.
//
// The message log, window state and epoch are owned by a single goroutine
// (the primary loop). Everything else reaches them by submitting commands,
// including dispatch goroutines reporting results.
type Controller struct {
	cfg        Config
	selector   *chatservice.Selector
	dispatcher *Dispatcher
	queue      *handoffQueue
	router     *Router
	sink       AlertSink

	surfacesMu sync.RWMutex
	surfaces   map[chat.Identity]ChatSurface

	epoch    uint64
	commands chan func()
	started  atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewController wires a session. sink may be nil when nobody monitors the session.
func NewController(cfg Config, analyzer Analyzer, sink AlertSink) (*Controller, error) {
	cfg = cfg.withDefaults()

	selector, err := chatservice.NewSelector(cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("create window selector: %w", err)
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}

	queue := newHandoffQueue(cfg.QueueSize)
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		cfg:        cfg,
		selector:   selector,
		dispatcher: NewDispatcher(analyzer, cfg.AnalysisTimeout, cfg.MaxInFlight, cfg.UsernameSuffix),
		queue:      queue,
		router:     newRouter(queue, sink, cfg.WindowSize),
		sink:       sink,
		surfaces:   make(map[chat.Identity]ChatSurface),
		commands:   make(chan func()),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Participants returns the session roster.
func (c *Controller) Participants() chat.Roster {
	return append(chat.Roster(nil), c.cfg.Participants...)
}

// WindowSize returns the configured analysis window size.
func (c *Controller) WindowSize() int {
	return c.cfg.WindowSize
}

// RegisterSurface binds the chat surface of a participant.
func (c *Controller) RegisterSurface(id chat.Identity, surface ChatSurface) error {
	if !c.cfg.Participants.Contains(id) {
		return fmt.Errorf("register surface %q: %w", id, chat.ErrUnknownParticipant)
	}
	c.surfacesMu.Lock()
	c.surfaces[id] = surface
	c.surfacesMu.Unlock()
	return nil
}

// Start launches the primary loop. The loop ends when ctx is done or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go func() {
			select {
			case <-ctx.Done():
				c.Stop()
			case <-c.ctx.Done():
			}
		}()
		go c.loop()
		log.Printf("[session] started with participants=%v window=%d poll=%s", c.cfg.Participants, c.cfg.WindowSize, c.cfg.PollInterval)
	})
}

// Stop ends polling, refuses new analyses and waits a bounded time for
// running ones. Results that arrive afterwards are dropped.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		log.Println("[session] stopping")
		c.cancel()
		c.startOnce.Do(func() { close(c.done) })
		c.dispatcher.Stop(c.cfg.ShutdownGrace)
		log.Println("[session] stopped")
	})
}

// Done is closed once the primary loop has exited, or by Stop when the
// loop never ran.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.commands:
			cmd()
		case <-ticker.C:
			c.router.Poll(c.epoch, c.selector.Len())
		}
	}
}

// exec runs fn on the primary loop and waits for it to finish.
func (c *Controller) exec(ctx context.Context, fn func()) error {
	if c.ctx.Err() != nil {
		return ErrSessionStopped
	}
	if !c.started.Load() {
		return ErrSessionNotStarted
	}

	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.commands <- cmd:
	case <-c.ctx.Done():
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit queues fn on the primary loop without waiting for it.
func (c *Controller) submit(fn func()) bool {
	select {
	case c.commands <- fn:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// HandleIncoming appends a message from sender, mirrors it to the other
// participant and dispatches an analysis when the trigger fires.
func (c *Controller) HandleIncoming(ctx context.Context, sender chat.Identity, text string) (chat.Turn, error) {
	if !c.cfg.Participants.Contains(sender) {
		return chat.Turn{}, chat.ErrUnknownParticipant
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Turn{}, ErrEmptyMessage
	}

	var turn chat.Turn
	err := c.exec(ctx, func() {
		turn = c.handleIncoming(sender, text)
	})
	return turn, err
}

func (c *Controller) handleIncoming(sender chat.Identity, text string) chat.Turn {
	turn := c.selector.Append(sender, text, time.Now().UTC())

	for _, peer := range c.cfg.Participants.Peers(sender) {
		if surface := c.surface(peer); surface != nil {
			surface.DisplayIncoming(sender, text)
		}
	}

	state := c.selector.State()
	log.Printf("[session] messages: total=%d since_analysis=%d", c.selector.Len(), state.MessagesSinceLastAnalysis)

	if c.selector.ShouldTrigger() {
		job := dispatchJob{
			epoch:       c.epoch,
			participant: sender,
			window:      c.selector.CurrentWindow(),
			logLength:   c.selector.Len(),
		}
		c.dispatcher.Dispatch(job, c.complete)
	}
	return turn
}

// complete runs on a dispatch goroutine once a result is known.
func (c *Controller) complete(item handoff) {
	if !c.queue.push(c.ctx, item) {
		log.Printf("[session] session stopped, dropping result for %s", item.participant)
		return
	}
	c.submit(func() { c.markAnalyzed(item.epoch) })
}

func (c *Controller) markAnalyzed(epoch uint64) {
	if epoch != c.epoch {
		log.Printf("[session] ignoring completion from epoch %d after reset (current %d)", epoch, c.epoch)
		return
	}
	c.selector.MarkAnalyzed(c.selector.Len())
	log.Printf("[session] analysis complete, next analysis after %d more messages", c.cfg.WindowSize)
}

// Reset clears the log, window state, pending results and both chat surfaces
// in one step. Results of analyses started before the reset are discarded.
func (c *Controller) Reset(ctx context.Context) error {
	return c.exec(ctx, c.reset)
}

func (c *Controller) reset() {
	c.epoch++
	c.selector.Reset()
	dropped := c.queue.drain()

	if c.sink != nil {
		c.sink.Reset()
	}
	for _, id := range c.cfg.Participants {
		if surface := c.surface(id); surface != nil {
			surface.Clear()
		}
	}
	log.Printf("[session] chat system reset (epoch=%d, dropped %d pending results)", c.epoch, dropped)
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot(ctx context.Context) (State, error) {
	var state State
	err := c.exec(ctx, func() {
		state = State{
			Turns:    c.selector.Turns(),
			Window:   c.selector.State(),
			Epoch:    c.epoch,
			InFlight: c.dispatcher.InFlight(),
			Pending:  c.queue.len(),
		}
	})
	return state, err
}

func (c *Controller) surface(id chat.Identity) ChatSurface {
	c.surfacesMu.RLock()
	defer c.surfacesMu.RUnlock()
	return c.surfaces[id]
}
