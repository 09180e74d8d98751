package watch

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/senderwatch/internal/cache"
	"github.com/bnema/senderwatch/internal/domain"
)

func monitoredEntry(id, sender, status string) domain.MonitoredEntry {
	return domain.MonitoredEntry{
		ID:              domain.AccountID(id),
		Sender:          sender,
		LastKnownStatus: status,
	}
}

// Bands with only a min are deterministic: pick always returns the min.
var testMonitorConfig = MonitorConfig{
	IdleInterval:     7 * time.Second,
	ErrorBackoff:     9 * time.Second,
	HighPriorityBand: Band{Min: 10 * time.Second},
	ActionableBand:   Band{Min: 30 * time.Second},
	QuietBand:        Band{Min: 60 * time.Second},
}

func newTestMonitor(
	store *cache.Store,
	gateway *scriptedGateway,
	directory *fakeDirectory,
	notifier *captureNotifier,
	clock *fakeClock,
) *Monitor {
	return NewMonitor(store, gateway, directory, notifier, clock, testMonitorConfig, zerolog.Nop())
}

func TestRunCycleIdleWhenNothingMonitored(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})
	gateway := &scriptedGateway{}
	monitor := newTestMonitor(store, gateway, newFakeDirectory(), &captureNotifier{}, clock)

	delay := monitor.RunCycle(context.Background())
	assert.Equal(t, 7*time.Second, delay)
	assert.Zero(t, gateway.fetchCount())
}

func TestRunCycleBacksOffWhenDirectoryUnreadable(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})
	directory := newFakeDirectory()
	directory.loadErr = assert.AnError
	monitor := newTestMonitor(store, &scriptedGateway{}, directory, &captureNotifier{}, clock)

	delay := monitor.RunCycle(context.Background())
	assert.Equal(t, 9*time.Second, delay)
}

func TestRunCycleDetectsChangesAndRetunesTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})

	entries := make([]domain.MonitoredEntry, 0, 7)
	batch := make([]domain.AccountRecord, 0, 7)
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		entries = append(entries, monitoredEntry(id, "s"+id+"@example.com", "LOGGING"))
		batch = append(batch, record(id, "s"+id+"@example.com", "AVAILABLE"))
	}

	directory := newFakeDirectory(entries...)
	gateway := &scriptedGateway{batches: [][]domain.AccountRecord{batch}}
	notifier := &captureNotifier{}
	monitor := newTestMonitor(store, gateway, directory, notifier, clock)

	delay := monitor.RunCycle(context.Background())

	// Seven changes in one cycle is a busy batch: the freshness window
	// tightens to its minimum in a single adjustment.
	assert.Equal(t, cache.DefaultTTLMin, store.TTL().Current())

	events := notifier.all()
	require.Len(t, events, 7)
	for _, event := range events {
		assert.Equal(t, "LOGGING", event.OldStatus)
		assert.Equal(t, "AVAILABLE", event.NewStatus)
	}

	entry, ok := directory.entryByID("3")
	require.True(t, ok)
	assert.Equal(t, "AVAILABLE", entry.LastKnownStatus)

	// Everything is actionable now, so the next check lands in the
	// medium band.
	assert.Equal(t, 30*time.Second, delay)
}

func TestRunCycleUnchangedEntryOnlyTouches(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})
	directory := newFakeDirectory(monitoredEntry("1", "a@b.io", "AVAILABLE"))
	gateway := &scriptedGateway{batches: [][]domain.AccountRecord{
		{record("1", "a@b.io", "available")},
	}}
	notifier := &captureNotifier{}
	monitor := newTestMonitor(store, gateway, directory, notifier, clock)

	monitor.RunCycle(context.Background())

	assert.Empty(t, notifier.all())
	assert.Equal(t, 1, directory.touchCount())
}

func TestRunCycleMissingAccountIsSkippedNotDeleted(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})
	directory := newFakeDirectory(monitoredEntry("1", "a@b.io", "AVAILABLE"))
	gateway := &scriptedGateway{batches: [][]domain.AccountRecord{
		{record("2", "other@b.io", "AVAILABLE")},
	}}
	notifier := &captureNotifier{}
	monitor := newTestMonitor(store, gateway, directory, notifier, clock)

	monitor.RunCycle(context.Background())

	assert.Empty(t, notifier.all())
	assert.Zero(t, directory.touchCount())

	entry, ok := directory.entryByID("1")
	require.True(t, ok)
	assert.Equal(t, "AVAILABLE", entry.LastKnownStatus)
}

func TestRunCycleSurvivesFetchFailure(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})
	directory := newFakeDirectory(monitoredEntry("1", "a@b.io", "AVAILABLE"))
	gateway := &scriptedGateway{err: assert.AnError}
	notifier := &captureNotifier{}
	monitor := newTestMonitor(store, gateway, directory, notifier, clock)

	monitor.RunCycle(context.Background())

	// No snapshot at all: the entry is simply skipped this cycle.
	assert.Empty(t, notifier.all())

	entry, ok := directory.entryByID("1")
	require.True(t, ok)
	assert.Equal(t, "AVAILABLE", entry.LastKnownStatus)
}

func TestNextDelayBandSelection(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})
	monitor := newTestMonitor(store, &scriptedGateway{}, newFakeDirectory(), &captureNotifier{}, clock)

	tests := []struct {
		name     string
		statuses []string
		want     time.Duration
	}{
		{name: "logging wins over everything", statuses: []string{"AVAILABLE", "LOGGING"}, want: 10 * time.Second},
		{name: "actionable without logging", statuses: []string{"WRONG DETAILS", "ACTIVE"}, want: 30 * time.Second},
		{name: "nothing actionable", statuses: []string{"WRONG DETAILS", "AMOUNT TAKEN"}, want: 60 * time.Second},
		{name: "empty set", statuses: nil, want: 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, monitor.nextDelay(tt.statuses))
		})
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newWatchStore(clock, cache.TTLLevels{})
	monitor := newTestMonitor(store, &scriptedGateway{}, newFakeDirectory(), &captureNotifier{}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := monitor.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBandPick(t *testing.T) {
	t.Parallel()

	fixed := Band{Min: 5 * time.Second}
	assert.Equal(t, 5*time.Second, fixed.pick())

	ranged := Band{Min: 10 * time.Second, Max: 20 * time.Second}
	for range 50 {
		d := ranged.pick()
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.Less(t, d, 20*time.Second)
	}
}
