// Package monitor polls the hazard feeds in the background and pushes a
// short digest to the notifier channels whenever records are present.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/hazard"
	"github.com/nadzzz/civicbot/internal/notify"
)

// Outcome describes what one cycle did.
type Outcome string

const (
	OutcomePushed     Outcome = "pushed"
	OutcomeEmpty      Outcome = "empty"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeFetchError Outcome = "fetch-error"
	OutcomeNotifyErr  Outcome = "notify-error"
)

// Monitor runs hazard cycles on a schedule.
type Monitor struct {
	fetcher  hazard.Fetcher
	notifier notify.Notifier
	schedule cron.Schedule
	region   string
	dedupe   bool
	now      func() time.Time

	mu       sync.Mutex
	lastSent string
}

// New creates a monitor. The schedule accepts standard 5-field cron
// expressions and descriptors such as "@every 30m" or "@hourly".
func New(fetcher hazard.Fetcher, notifier notify.Notifier, cfg config.MonitorConfig, region string) (*Monitor, error) {
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("monitor: parsing schedule %q: %w", cfg.Schedule, err)
	}
	return &Monitor{
		fetcher:  fetcher,
		notifier: notifier,
		schedule: sched,
		region:   strings.ToUpper(region),
		dedupe:   cfg.Dedupe,
		now:      time.Now,
	}, nil
}

// Run performs a cycle immediately and then one per scheduled tick until
// ctx is cancelled. Cycle failures are logged and never stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("hazard monitor started", "region", m.region, "dedupe", m.dedupe)
	for {
		m.RunOnce(ctx)

		wait := m.schedule.Next(m.now()).Sub(m.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("hazard monitor stopped")
			return
		case <-timer.C:
		}
	}
}

// RunOnce fetches a snapshot and pushes the update digest if either feed
// has records.
func (m *Monitor) RunOnce(ctx context.Context) Outcome {
	start := m.now()
	logger := slog.With("region", m.region)

	snap, err := m.fetcher.Fetch(ctx)
	if err != nil {
		logger.Error("hazard monitor fetch failed", "error", err)
		return OutcomeFetchError
	}
	if snap.Empty() {
		logger.Debug("hazard monitor found no records")
		return OutcomeEmpty
	}

	digest := hazard.FormatUpdate(snap, m.region)
	if m.dedupe && digest == m.last() {
		logger.Debug("hazard monitor suppressed unchanged digest")
		return OutcomeDuplicate
	}

	if err := m.notifier.Notify(ctx, digest); err != nil {
		logger.Error("hazard monitor notify failed", "error", err)
		return OutcomeNotifyErr
	}
	m.setLast(digest)

	logger.Info("hazard update pushed",
		"alerts", len(snap.Alerts),
		"disasters", len(snap.Disasters),
		"duration", m.now().Sub(start),
	)
	return OutcomePushed
}

func (m *Monitor) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSent
}

func (m *Monitor) setLast(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSent = s
}
