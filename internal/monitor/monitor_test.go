package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/hazard"
)

type scriptedFetcher struct {
	mu    sync.Mutex
	snaps []hazard.Snapshot
	errs  []error
	calls int
}

func (f *scriptedFetcher) Fetch(context.Context) (hazard.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return hazard.Snapshot{}, f.errs[i]
	}
	if i < len(f.snaps) {
		return f.snaps[i], nil
	}
	if len(f.snaps) > 0 {
		return f.snaps[len(f.snaps)-1], nil
	}
	return hazard.Snapshot{}, nil
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (n *recordingNotifier) Name() string { return "recorder" }

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return n.err
}

var tornado = hazard.Snapshot{
	Alerts: []hazard.Alert{{Event: "Tornado Warning", Headline: "Take shelter"}},
}

func newTestMonitor(t *testing.T, f hazard.Fetcher, n *recordingNotifier, dedupe bool) *Monitor {
	t.Helper()
	m, err := New(f, n, config.MonitorConfig{Schedule: "@every 30m", Dedupe: dedupe}, "IN")
	require.NoError(t, err)
	return m
}

func TestRunOnce_PushesWhenRecordsExist(t *testing.T) {
	n := &recordingNotifier{}
	m := newTestMonitor(t, &scriptedFetcher{snaps: []hazard.Snapshot{tornado}}, n, false)

	assert.Equal(t, OutcomePushed, m.RunOnce(context.Background()))
	require.Len(t, n.sent, 1)
	assert.True(t, strings.HasPrefix(n.sent[0], "🚨 Hazard Update (IN)\n📡 NWS Alerts: 1 active alerts."))
}

func TestRunOnce_NoPushWhenEmpty(t *testing.T) {
	n := &recordingNotifier{}
	m := newTestMonitor(t, &scriptedFetcher{}, n, false)

	assert.Equal(t, OutcomeEmpty, m.RunOnce(context.Background()))
	assert.Empty(t, n.sent)
}

func TestRunOnce_RepeatsWithoutDedupe(t *testing.T) {
	n := &recordingNotifier{}
	m := newTestMonitor(t, &scriptedFetcher{snaps: []hazard.Snapshot{tornado}}, n, false)

	m.RunOnce(context.Background())
	m.RunOnce(context.Background())
	assert.Len(t, n.sent, 2, "a standing alert is pushed every cycle")
}

func TestRunOnce_Dedupe(t *testing.T) {
	flood := hazard.Snapshot{Alerts: []hazard.Alert{{Event: "Flood Warning", Headline: "Move to higher ground"}}}
	n := &recordingNotifier{}
	m := newTestMonitor(t, &scriptedFetcher{snaps: []hazard.Snapshot{tornado, tornado, flood}}, n, true)

	assert.Equal(t, OutcomePushed, m.RunOnce(context.Background()))
	assert.Equal(t, OutcomeDuplicate, m.RunOnce(context.Background()))
	assert.Equal(t, OutcomePushed, m.RunOnce(context.Background()))
	assert.Len(t, n.sent, 2)
}

func TestRunOnce_ErrorsDoNotStopLaterCycles(t *testing.T) {
	f := &scriptedFetcher{
		snaps: []hazard.Snapshot{{}, tornado},
		errs:  []error{errors.New("timeout")},
	}
	n := &recordingNotifier{}
	m := newTestMonitor(t, f, n, false)

	assert.Equal(t, OutcomeFetchError, m.RunOnce(context.Background()))
	assert.Equal(t, OutcomePushed, m.RunOnce(context.Background()))
	assert.Len(t, n.sent, 1)
}

func TestRunOnce_NotifyFailureIsNotRememberedForDedupe(t *testing.T) {
	n := &recordingNotifier{err: errors.New("twilio down")}
	m := newTestMonitor(t, &scriptedFetcher{snaps: []hazard.Snapshot{tornado}}, n, true)

	assert.Equal(t, OutcomeNotifyErr, m.RunOnce(context.Background()))
	n.err = nil
	assert.Equal(t, OutcomePushed, m.RunOnce(context.Background()))
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(&scriptedFetcher{}, &recordingNotifier{}, config.MonitorConfig{Schedule: "every so often"}, "IN")
	assert.ErrorContains(t, err, "parsing schedule")
}

func TestRun_FirstCycleImmediatelyThenOnSchedule(t *testing.T) {
	f := &scriptedFetcher{snaps: []hazard.Snapshot{tornado}}
	n := &recordingNotifier{}
	m, err := New(f, n, config.MonitorConfig{Schedule: "@every 1s"}, "IN")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.count() >= 1 }, 500*time.Millisecond, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return f.count() >= 2 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunOnce_RegionIsUpperCased(t *testing.T) {
	n := &recordingNotifier{}
	m, err := New(&scriptedFetcher{snaps: []hazard.Snapshot{tornado}}, n, config.MonitorConfig{Schedule: "@hourly"}, "in")
	require.NoError(t, err)

	assert.Equal(t, OutcomePushed, m.RunOnce(context.Background()))
	require.Len(t, n.sent, 1)
	assert.True(t, strings.HasPrefix(n.sent[0], "🚨 Hazard Update (IN)\n"))
}
