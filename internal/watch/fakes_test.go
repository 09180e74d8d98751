package watch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/cache"
	"github.com/bnema/senderwatch/internal/domain"
)

// fakeClock advances itself whenever a poller sleeps, so attempt loops run
// instantly while elapsed accounting stays meaningful.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// scriptedGateway serves one batch per fetch, repeating the last one once the
// script runs out.
type scriptedGateway struct {
	mu      sync.Mutex
	batches [][]domain.AccountRecord
	err     error
	calls   int
}

func (g *scriptedGateway) FetchBatch(context.Context) ([]domain.AccountRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if len(g.batches) == 0 {
		return nil, nil
	}

	idx := g.calls - 1
	if idx >= len(g.batches) {
		idx = len(g.batches) - 1
	}
	return g.batches[idx], nil
}

func (g *scriptedGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type upsertCall struct {
	ID        domain.AccountID
	Sender    string
	Status    string
	ChannelID string
}

// fakeDirectory is an in-memory AccountDirectory that records every mutation.
type fakeDirectory struct {
	mu      sync.Mutex
	entries map[string]domain.MonitoredEntry
	loadErr error

	upserts []upsertCall
	touches []domain.AccountID
}

func newFakeDirectory(entries ...domain.MonitoredEntry) *fakeDirectory {
	d := &fakeDirectory{entries: map[string]domain.MonitoredEntry{}}
	for _, entry := range entries {
		d.entries[entry.Key()] = entry
	}
	return d
}

func (d *fakeDirectory) Load(context.Context) (map[string]domain.MonitoredEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loadErr != nil {
		return nil, d.loadErr
	}

	out := make(map[string]domain.MonitoredEntry, len(d.entries))
	for key, entry := range d.entries {
		out[key] = entry
	}
	return out, nil
}

func (d *fakeDirectory) Save(_ context.Context, entries map[string]domain.MonitoredEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = make(map[string]domain.MonitoredEntry, len(entries))
	for key, entry := range entries {
		d.entries[key] = entry
	}
	return nil
}

func (d *fakeDirectory) Upsert(_ context.Context, id domain.AccountID, sender, status, channelID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.upserts = append(d.upserts, upsertCall{ID: id, Sender: sender, Status: status, ChannelID: channelID})
	entry := domain.MonitoredEntry{ID: id, Sender: sender, LastKnownStatus: status, ChannelID: channelID}
	d.entries[entry.Key()] = entry
	return nil
}

func (d *fakeDirectory) UpdateStatus(_ context.Context, id domain.AccountID, status string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, entry := range d.entries {
		if entry.ID == id {
			entry.LastKnownStatus = status
			entry.LastCheck = at
			d.entries[key] = entry
			return nil
		}
	}
	return domain.ErrEntryNotFound
}

func (d *fakeDirectory) Touch(_ context.Context, id domain.AccountID, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.touches = append(d.touches, id)
	for key, entry := range d.entries {
		if entry.ID == id {
			entry.LastCheck = at
			d.entries[key] = entry
			return nil
		}
	}
	return domain.ErrEntryNotFound
}

func (d *fakeDirectory) entryByID(id domain.AccountID) (domain.MonitoredEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return domain.MonitoredEntry{}, false
}

func (d *fakeDirectory) touchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.touches)
}

type captureNotifier struct {
	mu     sync.Mutex
	events []domain.StatusChangeEvent
}

func (n *captureNotifier) Notify(_ context.Context, event domain.StatusChangeEvent, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) all() []domain.StatusChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.StatusChangeEvent(nil), n.events...)
}

type captureReporter struct {
	mu       sync.Mutex
	progress []domain.TrackProgress
}

func (r *captureReporter) Report(_ context.Context, progress domain.TrackProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
}

func (r *captureReporter) all() []domain.TrackProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TrackProgress(nil), r.progress...)
}

// alwaysStale forces a refetch on every attempt by shrinking every freshness
// window to a single nanosecond.
var alwaysStale = cache.TTLLevels{Min: time.Nanosecond, Normal: time.Nanosecond, Max: time.Nanosecond}

func newWatchStore(clock *fakeClock, levels cache.TTLLevels) *cache.Store {
	logger := zerolog.Nop()
	ttl := cache.NewTTLController(levels, logger)
	burst := cache.NewBurstSession(0, clock, logger)
	return cache.NewStore(ttl, burst, clock, logger)
}
