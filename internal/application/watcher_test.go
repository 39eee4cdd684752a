package application

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"bridgewatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, repo *mockRepo, cache *mockCache, alerts *mockAlerts, observer *mockObserver, bridges ...string) *Watcher {
	t.Helper()
	var reportCache ReportCache
	if cache != nil {
		reportCache = cache
	}
	reports, err := NewReportService(repo, reportCache)
	require.NoError(t, err)
	var publisher AlertPublisher
	if alerts != nil {
		publisher = alerts
	}
	var obs WatcherObserver
	if observer != nil {
		obs = observer
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	w, err := NewWatcher(repo, reports, publisher, obs, logger, WatcherConfig{Bridges: bridges, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return w
}

func TestWatcher_RunOnceCleanBridge(t *testing.T) {
	repo := newMockRepo()
	repo.claims["b"] = []domain.Claim{claimFor("0xabc", 1000)}
	repo.transfers["b"] = []domain.Transfer{transferFor("0xabc", 1000), transferFor("0xdef", 5)}
	cache := &mockCache{}
	alerts := &mockAlerts{}
	observer := newMockObserver()

	report, err := newTestWatcher(t, repo, cache, alerts, observer).RunOnce(context.Background(), "b")
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "b", report.Bridge)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), report.CreatedAt)
	assert.Equal(t, domain.Stats{TotalClaims: 1, TotalTransfers: 2, Completed: 1, Pending: 1}, report.Result.Stats)
	assert.False(t, report.Result.FraudDetected)

	require.Len(t, repo.reports, 1)
	assert.Equal(t, report.RunID, cache.reports["b"].RunID)
	assert.Empty(t, alerts.alerts)
	assert.Equal(t, 1, observer.runs["b"])
}

func TestWatcher_RunOncePublishesAlertOnFraud(t *testing.T) {
	repo := newMockRepo()
	repo.claims["b"] = []domain.Claim{claimFor("0xabc", 1000)}
	repo.transfers["b"] = []domain.Transfer{transferFor("0xabc", 999)}
	alerts := &mockAlerts{}

	report, err := newTestWatcher(t, repo, &mockCache{}, alerts, nil).RunOnce(context.Background(), "b")
	require.NoError(t, err)

	assert.True(t, report.Result.FraudDetected)
	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, report.RunID, alerts.alerts[0].RunID)
}

func TestWatcher_RunOnceErrors(t *testing.T) {
	repo := newMockRepo()
	observer := newMockObserver()
	w := newTestWatcher(t, repo, nil, nil, observer)

	_, err := w.RunOnce(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Equal(t, 0, observer.errors["empty"])

	repo.loadErr = errBoom
	_, err = w.RunOnce(context.Background(), "b")
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, observer.errors["b"])

	repo.loadErr = nil
	repo.saveErr = errBoom
	repo.claims["b"] = []domain.Claim{claimFor("0xabc", 1)}
	_, err = w.RunOnce(context.Background(), "b")
	assert.ErrorIs(t, err, errBoom)
}

func TestWatcher_AlertFailureIsReported(t *testing.T) {
	repo := newMockRepo()
	repo.claims["b"] = []domain.Claim{claimFor("0xabc", 1)}
	alerts := &mockAlerts{err: errBoom}

	_, err := newTestWatcher(t, repo, nil, alerts, nil).RunOnce(context.Background(), "b")
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, repo.reports, 1)
}

func TestWatcher_RunAllIsolatesBridges(t *testing.T) {
	repo := newMockRepo()
	repo.claims["a"] = []domain.Claim{claimFor("0x1", 1)}
	repo.transfers["a"] = []domain.Transfer{transferFor("0x1", 1)}
	repo.transfers["c"] = []domain.Transfer{transferFor("0x2", 1)}
	observer := newMockObserver()

	err := newTestWatcher(t, repo, nil, nil, observer, "a", "missing", "c").RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, observer.runs["a"])
	assert.Equal(t, 1, observer.runs["c"])
	assert.Len(t, repo.reports, 2)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	repo := newMockRepo()
	repo.claims["a"] = []domain.Claim{claimFor("0x1", 1)}
	observer := newMockObserver()
	w := newTestWatcher(t, repo, nil, nil, observer, "a")

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.GreaterOrEqual(t, observer.runs["a"], 2)
}

func TestReportService_LatestReadsThrough(t *testing.T) {
	repo := newMockRepo()
	cache := &mockCache{}
	reports, err := NewReportService(repo, cache)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := reports.Latest(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	repo.reports = append(repo.reports, domain.Report{RunID: "r1", Bridge: "b"})
	report, ok, err := reports.Latest(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", report.RunID)
	assert.Equal(t, "r1", cache.reports["b"].RunID)

	repo.reports = nil
	report, ok, err = reports.Latest(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r1", report.RunID)

	_, err = NewReportService(nil, nil)
	assert.Error(t, err)
}
