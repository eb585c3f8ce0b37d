package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CHAT_PARTICIPANTS", "MONITOR_WINDOW_SIZE", "MONITOR_POLL_INTERVAL",
		"MONITOR_ANALYSIS_TIMEOUT", "MONITOR_SHUTDOWN_GRACE", "MONITOR_MAX_IN_FLIGHT",
		"MONITOR_QUEUE_SIZE", "MONITOR_ALERT_DB", "ANALYZER_PROVIDER", "ARK_API_KEY",
		"ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Monitor.WindowSize != 3 {
		t.Fatalf("expected window size 3, got %d", cfg.Monitor.WindowSize)
	}
	if cfg.Monitor.PollInterval != 100*time.Millisecond {
		t.Fatalf("expected 100ms poll interval, got %s", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.AnalysisTimeout != 30*time.Second {
		t.Fatalf("expected 30s analysis timeout, got %s", cfg.Monitor.AnalysisTimeout)
	}
	if len(cfg.Monitor.Participants) != 2 || cfg.Monitor.Participants[0] != "Alice" {
		t.Fatalf("unexpected participants: %v", cfg.Monitor.Participants)
	}
	if cfg.Analyzer.Provider != ProviderHeuristic {
		t.Fatalf("expected heuristic provider without credentials, got %s", cfg.Analyzer.Provider)
	}
}

func TestLoadPrefersArkWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("Model", "doubao")
	t.Setenv("OPENAI_API_KEY", "sk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Analyzer.Provider != ProviderArk {
		t.Fatalf("expected ark provider, got %s", cfg.Analyzer.Provider)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"MONITOR_WINDOW_SIZE":   "0",
		"MONITOR_POLL_INTERVAL": "soon",
		"CHAT_PARTICIPANTS":     "Alice",
		"ANALYZER_PROVIDER":     "magic",
		"PORT":                  "80 80",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestMonitorConfigSession(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_PARTICIPANTS", "Sam, Riley")
	t.Setenv("MONITOR_WINDOW_SIZE", "5")
	t.Setenv("MONITOR_MAX_IN_FLIGHT", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	session := cfg.Monitor.Session()
	if session.WindowSize != 5 || session.MaxInFlight != 1 {
		t.Fatalf("unexpected session config: %+v", session)
	}
	if len(session.Participants) != 2 || session.Participants[1] != "Riley" {
		t.Fatalf("unexpected participants: %v", session.Participants)
	}
}
