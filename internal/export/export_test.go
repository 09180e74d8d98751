package export

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu      sync.Mutex
	err     error
	batches [][]string
}

func (s *fakeSink) AppendSenders(_ context.Context, senders []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]string(nil), senders...))
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func newTestQueue(t *testing.T) *QueueStore {
	t.Helper()

	store, err := NewQueueStore(filepath.Join(t.TempDir(), "export-queue.toml"))
	require.NoError(t, err)
	return store
}

func newTestWorker(t *testing.T, store *QueueStore, sink *fakeSink, cfg WorkerConfig) (*Worker, *History) {
	t.Helper()

	history, err := NewHistory(filepath.Join(t.TempDir(), "export-history.toml"), 0)
	require.NoError(t, err)

	clock := fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewWorker(store, sink, history, clock, cfg, zerolog.Nop()), history
}

func TestQueueCountsStartAtZero(t *testing.T) {
	t.Parallel()

	store := newTestQueue(t)
	pending, retry, failed, err := store.Counts()
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, retry)
	assert.Zero(t, failed)
}

func TestEnqueuePersistsAcrossStoreValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "export-queue.toml")

	store, err := NewQueueStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(context.Background(), "a@b.io", time.Now()))

	reopened, err := NewQueueStore(path)
	require.NoError(t, err)
	pending, _, _, err := reopened.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestProcessPendingDeliversBatchAndRecordsHistory(t *testing.T) {
	t.Parallel()

	store := newTestQueue(t)
	sink := &fakeSink{}
	worker, history := newTestWorker(t, store, sink, WorkerConfig{})

	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Enqueue(ctx, "a@b.io", at))
	require.NoError(t, store.Enqueue(ctx, "c@d.io", at))

	require.NoError(t, worker.ProcessPending(ctx))

	require.Len(t, sink.batches, 1)
	assert.Equal(t, []string{"a@b.io", "c@d.io"}, sink.batches[0])

	pending, retry, failed, err := store.Counts()
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, retry)
	assert.Zero(t, failed)

	recent, err := history.Recent(at)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@b.io", "c@d.io"}, recent)
}

func TestProcessPendingEmptyQueueSkipsSink(t *testing.T) {
	t.Parallel()

	store := newTestQueue(t)
	sink := &fakeSink{}
	worker, _ := newTestWorker(t, store, sink, WorkerConfig{})

	require.NoError(t, worker.ProcessPending(context.Background()))
	assert.Empty(t, sink.batches)
}

func TestProcessPendingFailureMovesBatchToRetry(t *testing.T) {
	t.Parallel()

	store := newTestQueue(t)
	sink := &fakeSink{err: assert.AnError}
	worker, _ := newTestWorker(t, store, sink, WorkerConfig{})

	ctx := context.Background()
	require.NoError(t, store.Enqueue(ctx, "a@b.io", time.Now()))
	require.NoError(t, store.Enqueue(ctx, "c@d.io", time.Now()))

	require.NoError(t, worker.ProcessPending(ctx))

	pending, retry, failed, err := store.Counts()
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 2, retry)
	assert.Zero(t, failed)
}

func TestProcessRetryDeliversAndClearsBucket(t *testing.T) {
	t.Parallel()

	store := newTestQueue(t)
	sink := &fakeSink{err: assert.AnError}
	worker, _ := newTestWorker(t, store, sink, WorkerConfig{})

	ctx := context.Background()
	require.NoError(t, store.Enqueue(ctx, "a@b.io", time.Now()))
	require.NoError(t, worker.ProcessPending(ctx))

	sink.err = nil
	require.NoError(t, worker.ProcessRetry(ctx))

	_, retry, failed, err := store.Counts()
	require.NoError(t, err)
	assert.Zero(t, retry)
	assert.Zero(t, failed)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, []string{"a@b.io"}, sink.batches[0])
}

func TestProcessRetryExhaustionMovesToFailed(t *testing.T) {
	t.Parallel()

	store := newTestQueue(t)
	sink := &fakeSink{err: assert.AnError}
	worker, _ := newTestWorker(t, store, sink, WorkerConfig{MaxRetries: 2})

	ctx := context.Background()
	require.NoError(t, store.Enqueue(ctx, "a@b.io", time.Now()))
	require.NoError(t, worker.ProcessPending(ctx))

	// Two failed retry passes exhaust the budget.
	require.NoError(t, worker.ProcessRetry(ctx))
	require.NoError(t, worker.ProcessRetry(ctx))

	pending, retry, failed, err := store.Counts()
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, retry)
	assert.Equal(t, 1, failed)
}

func TestHistoryPrunesExpiredEntries(t *testing.T) {
	t.Parallel()

	history, err := NewHistory(filepath.Join(t.TempDir(), "history.toml"), 0)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, history.Record([]string{"a@b.io"}, at))

	recent, err := history.Recent(at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.io"}, recent)

	recent, err = history.Recent(at.Add(8 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestJitterBounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, jitter(time.Second, time.Second))
	for range 50 {
		d := jitter(time.Second, 3*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestWorkerConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := WorkerConfig{}.withDefaults()
	assert.Equal(t, time.Second, cfg.PendingMinInterval)
	assert.Equal(t, 10*time.Second, cfg.PendingMaxInterval)
	assert.Equal(t, 30*time.Second, cfg.RetryMinInterval)
	assert.Equal(t, 60*time.Second, cfg.RetryMaxInterval)
	assert.Equal(t, 50, cfg.MaxRetries)
}
