package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-monitor/backend/internal/config"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/service/sentiment"
	"github.com/zhouzirui/chat-monitor/backend/internal/store/alerts"
)

const transcript = `# two windows of three
Alice: hi bob
Bob: hey, I'm so happy today
Alice: that's great
Mallory: let me in
Bob: don't tell anyone, it's our secret
not a chat line
Alice: ok
Bob: meet me after school, come alone
`

func testConfig() *config.Config {
	return &config.Config{
		Monitor: config.MonitorConfig{
			Participants:    chat.Roster{"Alice", "Bob"},
			WindowSize:      3,
			PollInterval:    5 * time.Millisecond,
			AnalysisTimeout: time.Second,
			ShutdownGrace:   time.Second,
			QueueSize:       8,
		},
		Analyzer: config.AnalyzerConfig{Provider: config.ProviderHeuristic},
	}
}

func TestParseTranscript(t *testing.T) {
	lines, err := parseTranscript(strings.NewReader(transcript))
	require.NoError(t, err)
	require.Len(t, lines, 7)

	assert.Equal(t, "Alice", lines[0].sender)
	assert.Equal(t, "hi bob", lines[0].message)
	assert.Equal(t, 2, lines[0].number)
	assert.Equal(t, "Mallory", lines[3].sender)
}

func TestReplayDeliversAlertPerWindow(t *testing.T) {
	lines, err := parseTranscript(strings.NewReader(transcript))
	require.NoError(t, err)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = replay(ctx, testConfig(), sentiment.HeuristicAnalyzer{}, lines, &out, replayOptions{waitEach: true})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Messages 1 - 3 (Window of 3)  Alice: positive")
	assert.Contains(t, output, "Messages 4 - 6 (Window of 3)  Bob: concerning [ALERT]")
	assert.Contains(t, output, "replayed 6 messages, 2 alerts delivered")
}

func TestReplayJournalsAlerts(t *testing.T) {
	lines, err := parseTranscript(strings.NewReader(transcript))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "alerts.db")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err = replay(ctx, testConfig(), sentiment.HeuristicAnalyzer{}, lines, &out, replayOptions{alertDB: dbPath, waitEach: true})
	require.NoError(t, err)

	store, err := alerts.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	stored, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 4, stored[1].MessageRange.Start)
}

func TestApplyOverrides(t *testing.T) {
	cfg := testConfig()
	err := applyOverrides(cfg, &options{window: 5, provider: "openai", participants: "Sam,Riley"})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Monitor.WindowSize)
	assert.Equal(t, config.ProviderOpenAI, cfg.Analyzer.Provider)
	assert.Equal(t, chat.Roster{"Sam", "Riley"}, cfg.Monitor.Participants)

	assert.Error(t, applyOverrides(testConfig(), &options{provider: "gpt"}))
	assert.Error(t, applyOverrides(testConfig(), &options{participants: "Sam"}))
	assert.Error(t, applyOverrides(testConfig(), &options{window: -1}))
}
