package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/chat-monitor/backend/internal/config"
	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
	monitorservice "github.com/zhouzirui/chat-monitor/backend/internal/service/monitor"
	"github.com/zhouzirui/chat-monitor/backend/internal/store/alerts"
)

// line is one parsed "Sender: message" entry of a transcript.
type line struct {
	number  int
	sender  string
	message string
}

func parseTranscript(r io.Reader) ([]line, error) {
	var lines []line
	scanner := bufio.NewScanner(r)
	number := 0
	for scanner.Scan() {
		number++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		sender, message, ok := strings.Cut(raw, ":")
		if !ok || strings.TrimSpace(sender) == "" {
			log.Printf("[replay] line %d: expected \"Sender: message\", skipping", number)
			continue
		}
		lines = append(lines, line{
			number:  number,
			sender:  strings.TrimSpace(sender),
			message: strings.TrimSpace(message),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return lines, nil
}

// printSink writes every alert to out as it is delivered.
type printSink struct {
	mu    sync.Mutex
	out   io.Writer
	count int
}

func (s *printSink) DeliverAlert(alert monitor.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++

	flag := ""
	if alert.AlertNeeded {
		flag = " [ALERT]"
	}
	writef(s.out, "%s  %s: %s%s\n    %s\n", alert.RangeLabel(), alert.Participant, alert.Sentiment, flag, alert.Explanation)
}

func (s *printSink) Reset() {}

func (s *printSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type replayOptions struct {
	alertDB  string
	waitEach bool
}

func replay(ctx context.Context, cfg *config.Config, analyzer monitorservice.Analyzer, lines []line, out io.Writer, opts replayOptions) error {
	printer := &printSink{out: out}
	sinks := monitorservice.MultiSink{printer}

	if opts.alertDB != "" {
		store, err := alerts.Open(opts.alertDB)
		if err != nil {
			return fmt.Errorf("open alert journal: %w", err)
		}
		defer store.Close()

		journal := alerts.NewJournal(store, cfg.Monitor.QueueSize)
		defer journal.Close()
		sinks = append(sinks, journal)
	}

	session, err := monitorservice.NewController(cfg.Monitor.Session(), analyzer, sinks)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	session.Start(ctx)
	defer session.Stop()

	roster := session.Participants()
	sent := 0
	for _, l := range lines {
		sender, err := roster.Resolve(l.sender)
		if err != nil {
			log.Printf("[replay] line %d: %q is not one of %v, skipping", l.number, l.sender, roster)
			continue
		}
		if _, err := session.HandleIncoming(ctx, sender, l.message); err != nil {
			if errors.Is(err, monitorservice.ErrEmptyMessage) {
				log.Printf("[replay] line %d: empty message, skipping", l.number)
				continue
			}
			return fmt.Errorf("line %d: %w", l.number, err)
		}
		sent++

		if opts.waitEach {
			if err := waitIdle(ctx, session); err != nil {
				return err
			}
		}
	}

	if err := waitIdle(ctx, session); err != nil {
		return err
	}

	writef(out, "replayed %d messages, %d alerts delivered\n", sent, printer.Count())
	return nil
}

// waitIdle blocks until no analysis is running and no result awaits delivery.
func waitIdle(ctx context.Context, session *monitorservice.Controller) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		state, err := session.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("wait for analyses: %w", err)
		}
		if state.InFlight == 0 && state.Pending == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for analyses: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
