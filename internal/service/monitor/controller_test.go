package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-monitor/backend/internal/service/chat"
)

const (
	alice chat.Identity = "Alice"
	bob   chat.Identity = "Bob"

	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testConfig() Config {
	return Config{
		Participants:    chat.Roster{alice, bob},
		WindowSize:      3,
		PollInterval:    5 * time.Millisecond,
		AnalysisTimeout: time.Second,
		ShutdownGrace:   200 * time.Millisecond,
		UsernameSuffix:  "_demo",
	}
}

func startController(t *testing.T, cfg Config, analyzer Analyzer) (*Controller, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	ctrl, err := NewController(cfg, analyzer, sink)
	require.NoError(t, err)
	ctrl.Start(context.Background())
	t.Cleanup(ctrl.Stop)
	return ctrl, sink
}

// send appends messages m<from>..m<to>, alternating Alice (odd) and Bob (even).
func send(t *testing.T, ctrl *Controller, from, to int) {
	t.Helper()
	for i := from; i <= to; i++ {
		sender := alice
		if i%2 == 0 {
			sender = bob
		}
		_, err := ctrl.HandleIncoming(context.Background(), sender, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
}

func snapshot(t *testing.T, ctrl *Controller) State {
	t.Helper()
	state, err := ctrl.Snapshot(context.Background())
	require.NoError(t, err)
	return state
}

func waitIdle(t *testing.T, ctrl *Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		state := snapshot(t, ctrl)
		return state.InFlight == 0 && state.Pending == 0
	}, waitFor, tick)
}

func windowMessages(turns []chat.Turn) []string {
	out := make([]string, len(turns))
	for i, turn := range turns {
		out[i] = turn.Message
	}
	return out
}

func TestControllerBatchesNonOverlappingWindows(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	ctrl, sink := startController(t, testConfig(), analyzer)

	send(t, ctrl, 1, 3)
	require.Eventually(t, func() bool { return len(sink.Alerts()) == 1 }, waitFor, tick)
	waitIdle(t, ctrl)

	calls := analyzer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"m1", "m2", "m3"}, windowMessages(calls[0].turns))
	assert.Equal(t, "Alice_demo", calls[0].participant)

	state := snapshot(t, ctrl)
	assert.Equal(t, 2, state.Window.LastAnalyzedIndex)
	assert.Equal(t, 0, state.Window.MessagesSinceLastAnalysis)

	send(t, ctrl, 4, 5)
	state = snapshot(t, ctrl)
	assert.Equal(t, 2, state.Window.MessagesSinceLastAnalysis)
	assert.Len(t, analyzer.Calls(), 1)

	send(t, ctrl, 6, 6)
	require.Eventually(t, func() bool { return len(sink.Alerts()) == 2 }, waitFor, tick)
	waitIdle(t, ctrl)

	calls = analyzer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"m4", "m5", "m6"}, windowMessages(calls[1].turns))
	assert.Equal(t, "Bob_demo", calls[1].participant)
	assert.Equal(t, 5, snapshot(t, ctrl).Window.LastAnalyzedIndex)

	alert := sink.Alerts()[1]
	assert.Equal(t, bob, alert.Participant)
	assert.Equal(t, 4, alert.MessageRange.Start)
	assert.Equal(t, 6, alert.MessageRange.End)
	assert.Equal(t, "Messages 4 - 6 (Window of 3)", alert.RangeLabel())

	send(t, ctrl, 7, 7)
	require.NoError(t, ctrl.Reset(context.Background()))

	state = snapshot(t, ctrl)
	assert.Empty(t, state.Turns)
	assert.Equal(t, chatservice.NotAnalyzed, state.Window.LastAnalyzedIndex)
	assert.Equal(t, 0, state.Window.MessagesSinceLastAnalysis)
	assert.Equal(t, 0, state.Pending)
	assert.Equal(t, 1, sink.Resets())
}

func TestControllerFailedAnalysisKeepsBacklog(t *testing.T) {
	analyzer := &fakeAnalyzer{
		fail: func(call int) error {
			if call == 0 {
				return errors.New("transport error")
			}
			return nil
		},
	}
	ctrl, sink := startController(t, testConfig(), analyzer)

	send(t, ctrl, 1, 3)
	require.Eventually(t, func() bool { return len(analyzer.Calls()) == 1 }, waitFor, tick)
	waitIdle(t, ctrl)

	state := snapshot(t, ctrl)
	assert.Equal(t, chatservice.NotAnalyzed, state.Window.LastAnalyzedIndex)
	assert.Equal(t, 3, state.Window.MessagesSinceLastAnalysis)
	assert.Empty(t, sink.Alerts())

	send(t, ctrl, 4, 4)
	require.Eventually(t, func() bool { return len(sink.Alerts()) == 1 }, waitFor, tick)

	calls := analyzer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"m2", "m3", "m4"}, windowMessages(calls[1].turns))
}

func TestControllerAnalysisTimeoutDropsWindow(t *testing.T) {
	cfg := testConfig()
	cfg.AnalysisTimeout = 20 * time.Millisecond
	analyzer := &fakeAnalyzer{gates: map[int]chan struct{}{0: make(chan struct{})}}
	ctrl, sink := startController(t, cfg, analyzer)

	send(t, ctrl, 1, 3)
	require.Eventually(t, func() bool { return len(analyzer.Calls()) == 1 }, waitFor, tick)
	waitIdle(t, ctrl)

	assert.Empty(t, sink.Alerts())
	assert.Equal(t, 3, snapshot(t, ctrl).Window.MessagesSinceLastAnalysis)
}

func TestControllerMirrorsToOtherParticipant(t *testing.T) {
	ctrl, _ := startController(t, testConfig(), &fakeAnalyzer{})
	aliceSurface := &recordingSurface{}
	bobSurface := &recordingSurface{}
	require.NoError(t, ctrl.RegisterSurface(alice, aliceSurface))
	require.NoError(t, ctrl.RegisterSurface(bob, bobSurface))

	_, err := ctrl.HandleIncoming(context.Background(), alice, "hello bob")
	require.NoError(t, err)
	_, err = ctrl.HandleIncoming(context.Background(), bob, "hi alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice: hello bob"}, bobSurface.Incoming())
	assert.Equal(t, []string{"Bob: hi alice"}, aliceSurface.Incoming())

	require.NoError(t, ctrl.Reset(context.Background()))
	assert.Equal(t, 1, aliceSurface.Clears())
	assert.Equal(t, 1, bobSurface.Clears())
	assert.Empty(t, bobSurface.Incoming())
}

func TestControllerRejectsInvalidInput(t *testing.T) {
	ctrl, _ := startController(t, testConfig(), &fakeAnalyzer{})

	_, err := ctrl.HandleIncoming(context.Background(), "Mallory", "hi")
	assert.ErrorIs(t, err, chat.ErrUnknownParticipant)

	_, err = ctrl.HandleIncoming(context.Background(), alice, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.ErrorIs(t, ctrl.RegisterSurface("Mallory", &recordingSurface{}), chat.ErrUnknownParticipant)
}

func TestControllerDiscardsResultsAfterReset(t *testing.T) {
	gate := make(chan struct{})
	analyzer := &fakeAnalyzer{gates: map[int]chan struct{}{0: gate}}
	ctrl, sink := startController(t, testConfig(), analyzer)

	send(t, ctrl, 1, 3)
	require.Eventually(t, func() bool { return snapshot(t, ctrl).InFlight == 1 }, waitFor, tick)

	require.NoError(t, ctrl.Reset(context.Background()))
	close(gate)
	waitIdle(t, ctrl)
	// give the router a few ticks to (not) deliver
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, sink.Alerts())
	state := snapshot(t, ctrl)
	assert.Equal(t, uint64(1), state.Epoch)
	assert.Empty(t, state.Turns)
	assert.Equal(t, chatservice.NotAnalyzed, state.Window.LastAnalyzedIndex)
	assert.Equal(t, 0, state.Window.MessagesSinceLastAnalysis)
}

func TestControllerDeliversOutOfOrder(t *testing.T) {
	first := make(chan struct{})
	second := make(chan struct{})
	analyzer := &fakeAnalyzer{gates: map[int]chan struct{}{0: first, 1: second}}
	ctrl, sink := startController(t, testConfig(), analyzer)

	send(t, ctrl, 1, 3) // triggers, Alice
	require.Eventually(t, func() bool { return len(analyzer.Calls()) == 1 }, waitFor, tick)
	send(t, ctrl, 4, 4) // backlog still >= window, triggers again, Bob
	require.Eventually(t, func() bool { return len(analyzer.Calls()) == 2 }, waitFor, tick)
	require.Equal(t, "Alice_demo", analyzer.Calls()[0].participant)
	require.Eventually(t, func() bool { return snapshot(t, ctrl).InFlight == 2 }, waitFor, tick)

	close(second)
	require.Eventually(t, func() bool { return len(sink.Alerts()) == 1 }, waitFor, tick)
	close(first)
	require.Eventually(t, func() bool { return len(sink.Alerts()) == 2 }, waitFor, tick)

	alerts := sink.Alerts()
	assert.Equal(t, bob, alerts[0].Participant)
	assert.Equal(t, alice, alerts[1].Participant)
}

func TestControllerSingleSlotSkipsWhileBusy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 1
	gate := make(chan struct{})
	analyzer := &fakeAnalyzer{gates: map[int]chan struct{}{0: gate}}
	ctrl, sink := startController(t, cfg, analyzer)

	send(t, ctrl, 1, 4)
	require.Eventually(t, func() bool { return len(analyzer.Calls()) == 1 }, waitFor, tick)
	assert.Equal(t, 1, snapshot(t, ctrl).InFlight)
	assert.Equal(t, 4, snapshot(t, ctrl).Window.MessagesSinceLastAnalysis)

	close(gate)
	require.Eventually(t, func() bool { return len(sink.Alerts()) == 1 }, waitFor, tick)
}

func TestControllerStopIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownGrace = 30 * time.Millisecond
	analyzer := &fakeAnalyzer{gates: map[int]chan struct{}{0: make(chan struct{})}}
	sink := &recordingSink{}
	ctrl, err := NewController(cfg, analyzer, sink)
	require.NoError(t, err)
	ctrl.Start(context.Background())

	send(t, ctrl, 1, 3)
	require.Eventually(t, func() bool { return len(analyzer.Calls()) == 1 }, waitFor, tick)

	stopped := make(chan struct{})
	go func() {
		ctrl.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop did not return within the grace period")
	}
	<-ctrl.Done()

	_, err = ctrl.HandleIncoming(context.Background(), alice, "late")
	assert.ErrorIs(t, err, ErrSessionStopped)
	assert.ErrorIs(t, ctrl.Reset(context.Background()), ErrSessionStopped)
	assert.Empty(t, sink.Alerts())
}

func TestControllerStopsWithParentContext(t *testing.T) {
	ctrl, err := NewController(testConfig(), &fakeAnalyzer{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ctrl.Start(ctx)
	cancel()

	select {
	case <-ctrl.Done():
	case <-time.After(waitFor):
		t.Fatal("controller loop did not exit after context cancel")
	}
}

func TestNewControllerRequiresAnalyzer(t *testing.T) {
	_, err := NewController(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestControllerRejectsCallsBeforeStart(t *testing.T) {
	ctrl, err := NewController(testConfig(), &fakeAnalyzer{}, nil)
	require.NoError(t, err)

	_, err = ctrl.HandleIncoming(context.Background(), alice, "m1")
	assert.ErrorIs(t, err, ErrSessionNotStarted)
	assert.ErrorIs(t, ctrl.Reset(context.Background()), ErrSessionNotStarted)
	_, err = ctrl.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrSessionNotStarted)
}

func TestControllerStopBeforeStartClosesDone(t *testing.T) {
	ctrl, err := NewController(testConfig(), &fakeAnalyzer{}, nil)
	require.NoError(t, err)

	ctrl.Stop()
	select {
	case <-ctrl.Done():
	case <-time.After(waitFor):
		t.Fatal("Done not closed after Stop without Start")
	}

	ctrl.Start(context.Background())
	_, err = ctrl.HandleIncoming(context.Background(), alice, "m1")
	assert.ErrorIs(t, err, ErrSessionStopped)
}
