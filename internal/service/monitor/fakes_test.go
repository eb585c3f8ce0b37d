package monitor

import (
	"context"
	"sync"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

type analyzeCall struct {
	participant string
	turns       []chat.Turn
}

// fakeAnalyzer records calls. Calls listed in gates wait for the gate to close
// (or ctx to end); calls for which fail returns an error fail.
type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []analyzeCall
	gates map[int]chan struct{}
	fail  func(call int) error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, participant string, turns []chat.Turn) (monitor.AnalysisResult, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, analyzeCall{participant: participant, turns: turns})
	gate := f.gates[idx]
	fail := f.fail
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return monitor.AnalysisResult{}, ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(idx); err != nil {
			return monitor.AnalysisResult{}, err
		}
	}
	return monitor.AnalysisResult{
		Sentiment:   "neutral",
		Explanation: participant,
		AlertNeeded: false,
	}, nil
}

func (f *fakeAnalyzer) Calls() []analyzeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analyzeCall(nil), f.calls...)
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []monitor.Alert
	resets int
}

func (s *recordingSink) DeliverAlert(alert monitor.Alert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func (s *recordingSink) Alerts() []monitor.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]monitor.Alert(nil), s.alerts...)
}

func (s *recordingSink) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

type recordingSurface struct {
	mu       sync.Mutex
	incoming []string
	clears   int
}

func (s *recordingSurface) DisplayIncoming(sender chat.Identity, message string) {
	s.mu.Lock()
	s.incoming = append(s.incoming, string(sender)+": "+message)
	s.mu.Unlock()
}

func (s *recordingSurface) Clear() {
	s.mu.Lock()
	s.incoming = nil
	s.clears++
	s.mu.Unlock()
}

func (s *recordingSurface) Incoming() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.incoming...)
}

func (s *recordingSurface) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}
