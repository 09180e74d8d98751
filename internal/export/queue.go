// Package export feeds newly submitted senders to an external spreadsheet
// sink through a persisted pending/retry queue, so sink outages never lose
// submissions.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	queueFileMode   = 0o600
	queueDirMode    = 0o700
	tempFilePattern = ".export-queue-*.toml.tmp"
)

type Item struct {
	Sender   string
	AddedAt  time.Time
	Attempts int
}

type queueSchema struct {
	Pending []itemSchema `toml:"pending"`
	Retry   []itemSchema `toml:"retry"`
	Failed  []itemSchema `toml:"failed"`
}

type itemSchema struct {
	Sender   string `toml:"sender"`
	AddedAt  string `toml:"added_at"`
	Attempts int    `toml:"attempts"`
}

func toItemSchema(item Item) itemSchema {
	return itemSchema{
		Sender:   item.Sender,
		AddedAt:  item.AddedAt.UTC().Format(time.RFC3339),
		Attempts: item.Attempts,
	}
}

func fromItemSchema(raw itemSchema) Item {
	addedAt, _ := time.Parse(time.RFC3339, raw.AddedAt)
	return Item{Sender: raw.Sender, AddedAt: addedAt, Attempts: raw.Attempts}
}

// QueueStore persists the three export buckets (pending, retry, failed) in
// one TOML file with atomic replace-on-write.
type QueueStore struct {
	path string
	mu   sync.Mutex
}

func NewQueueStore(path string) (*QueueStore, error) {
	if path == "" {
		return nil, errors.New("export queue path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve export queue path: %w", err)
	}

	return &QueueStore{path: filepath.Clean(absPath)}, nil
}

// Enqueue adds a sender to the pending bucket.
func (s *QueueStore) Enqueue(ctx context.Context, sender string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.read()
	if err != nil {
		return err
	}

	queue.Pending = append(queue.Pending, toItemSchema(Item{Sender: sender, AddedAt: at}))
	return s.write(queue)
}

func (s *QueueStore) pendingBatch() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.read()
	if err != nil {
		return nil, err
	}
	return decodeItems(queue.Pending), nil
}

func (s *QueueStore) retryBatch() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.read()
	if err != nil {
		return nil, err
	}
	return decodeItems(queue.Retry), nil
}

// resolvePending empties the pending bucket, moving failures to the retry or
// failed bucket depending on their attempt count.
func (s *QueueStore) resolvePending(delivered bool, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.read()
	if err != nil {
		return err
	}

	if !delivered {
		for _, raw := range queue.Pending {
			if raw.Attempts < maxRetries {
				queue.Retry = append(queue.Retry, raw)
			} else {
				queue.Failed = append(queue.Failed, raw)
			}
		}
	}

	queue.Pending = nil
	return s.write(queue)
}

// resolveRetry clears the retry bucket on delivery, or bumps attempt counts
// and drops exhausted items into the failed bucket.
func (s *QueueStore) resolveRetry(delivered bool, maxRetries int) (failed []Item, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.read()
	if err != nil {
		return nil, err
	}

	if delivered {
		queue.Retry = nil
		return nil, s.write(queue)
	}

	var remaining []itemSchema
	for _, raw := range queue.Retry {
		raw.Attempts++
		if raw.Attempts < maxRetries {
			remaining = append(remaining, raw)
		} else {
			queue.Failed = append(queue.Failed, raw)
			failed = append(failed, fromItemSchema(raw))
		}
	}
	queue.Retry = remaining

	return failed, s.write(queue)
}

// Counts reports the bucket sizes, for the status command.
func (s *QueueStore) Counts() (pending, retry, failed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.read()
	if err != nil {
		return 0, 0, 0, err
	}
	return len(queue.Pending), len(queue.Retry), len(queue.Failed), nil
}

func (s *QueueStore) read() (queueSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return queueSchema{}, nil
		}
		return queueSchema{}, fmt.Errorf("read export queue: %w", err)
	}

	var queue queueSchema
	if err := toml.Unmarshal(data, &queue); err != nil {
		return queueSchema{}, fmt.Errorf("decode export queue: %w", err)
	}
	return queue, nil
}

func (s *QueueStore) write(queue queueSchema) error {
	if err := os.MkdirAll(filepath.Dir(s.path), queueDirMode); err != nil {
		return fmt.Errorf("create export queue dir: %w", err)
	}

	data, err := toml.Marshal(queue)
	if err != nil {
		return fmt.Errorf("encode export queue: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp export queue: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp export queue: %w", err)
	}
	if err := tempFile.Chmod(queueFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp export queue: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp export queue: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace export queue: %w", err)
	}
	cleanup = false

	if err := os.Chmod(s.path, queueFileMode); err != nil {
		return fmt.Errorf("chmod export queue: %w", err)
	}

	return nil
}

func decodeItems(raw []itemSchema) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, fromItemSchema(r))
	}
	return items
}

func senders(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Sender)
	}
	return out
}
