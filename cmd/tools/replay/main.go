package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chat-monitor/backend/internal/config"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/chat"
	"github.com/zhouzirui/chat-monitor/backend/internal/service/sentiment"
)

type options struct {
	file         string
	window       int
	provider     string
	participants string
	alertDB      string
	waitEach     bool
	timeout      time.Duration
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a chat transcript through the monitored session",
		Long: "Feeds \"Sender: message\" lines into a chat session, waits for every " +
			"background analysis and prints the alerts the parent monitor would receive.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "-", "transcript file, - reads stdin")
	flags.IntVarP(&opts.window, "window", "w", 0, "analysis window size (default MONITOR_WINDOW_SIZE)")
	flags.StringVarP(&opts.provider, "provider", "p", "", "analyzer provider: ark, openai or heuristic")
	flags.StringVar(&opts.participants, "participants", "", "comma separated participants (default CHAT_PARTICIPANTS)")
	flags.StringVar(&opts.alertDB, "alert-db", "", "also journal alerts to this bbolt file")
	flags.BoolVar(&opts.waitEach, "wait-each", true, "wait for analyses to settle after every message")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall replay timeout")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	analyzer, err := sentiment.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create %s analyzer: %w", cfg.Analyzer.Provider, err)
	}

	in := cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer f.Close()
		in = f
	}

	lines, err := parseTranscript(in)
	if err != nil {
		return err
	}

	return replay(ctx, cfg, analyzer, lines, cmd.OutOrStdout(), replayOptions{
		alertDB:  opts.alertDB,
		waitEach: opts.waitEach,
	})
}

func applyOverrides(cfg *config.Config, opts *options) error {
	if opts.window < 0 {
		return fmt.Errorf("--window must be positive, got %d", opts.window)
	}
	if opts.window > 0 {
		cfg.Monitor.WindowSize = opts.window
	}
	if opts.participants != "" {
		roster := chat.ParseRoster(opts.participants)
		if len(roster) != 2 {
			return fmt.Errorf("--participants must name exactly two participants, got %d", len(roster))
		}
		cfg.Monitor.Participants = roster
	}
	switch opts.provider {
	case "":
	case config.ProviderArk, config.ProviderOpenAI, config.ProviderHeuristic:
		cfg.Analyzer.Provider = opts.provider
	default:
		return fmt.Errorf("unknown provider %q", opts.provider)
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		log.Printf("[replay] write output: %v", err)
	}
}
