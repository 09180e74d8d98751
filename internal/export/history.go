package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const DefaultRetention = 7 * 24 * time.Hour

// History is the rolling log of senders already pushed to the sink. Entries
// older than the retention window are dropped on every write.
type History struct {
	path      string
	retention time.Duration
	mu        sync.Mutex
}

type historySchema struct {
	Entries []historyEntrySchema `toml:"entries"`
}

type historyEntrySchema struct {
	Sender  string `toml:"sender"`
	AddedAt string `toml:"added_at"`
}

func NewHistory(path string, retention time.Duration) (*History, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}

	return &History{path: filepath.Clean(absPath), retention: retention}, nil
}

// Record appends the exported senders and prunes expired entries.
func (h *History) Record(senders []string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := h.read()
	if err != nil {
		return err
	}

	for _, sender := range senders {
		file.Entries = append(file.Entries, historyEntrySchema{
			Sender:  sender,
			AddedAt: at.UTC().Format(time.RFC3339),
		})
	}

	file.Entries = prune(file.Entries, at.Add(-h.retention))
	return h.write(file)
}

// Recent returns the senders recorded within the retention window.
func (h *History) Recent(now time.Time) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := h.read()
	if err != nil {
		return nil, err
	}

	kept := prune(file.Entries, now.Add(-h.retention))
	out := make([]string, 0, len(kept))
	for _, entry := range kept {
		out = append(out, entry.Sender)
	}
	return out, nil
}

func prune(entries []historyEntrySchema, cutoff time.Time) []historyEntrySchema {
	kept := entries[:0]
	for _, entry := range entries {
		addedAt, err := time.Parse(time.RFC3339, entry.AddedAt)
		if err != nil {
			continue
		}
		if addedAt.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	return kept
}

func (h *History) read() (historySchema, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return historySchema{}, nil
		}
		return historySchema{}, fmt.Errorf("read export history: %w", err)
	}

	var file historySchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return historySchema{}, fmt.Errorf("decode export history: %w", err)
	}
	return file, nil
}

func (h *History) write(file historySchema) error {
	if err := os.MkdirAll(filepath.Dir(h.path), queueDirMode); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode export history: %w", err)
	}

	if err := os.WriteFile(h.path, data, queueFileMode); err != nil {
		return fmt.Errorf("write export history: %w", err)
	}
	return nil
}
