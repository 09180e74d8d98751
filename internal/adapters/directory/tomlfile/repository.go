// Package tomlfile persists the monitored-entry directory as a TOML file
// with atomic replace-on-write.
package tomlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

const (
	directoryFileMode = 0o600
	directoryDirMode  = 0o700
	tempFilePattern   = ".monitored-*.toml.tmp"
)

type Repository struct {
	path string
	mu   *sync.RWMutex
}

// One lock per file path so two repository values over the same file still
// serialize their writes.
var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.AccountDirectory = (*Repository)(nil)

func NewRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("directory path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve directory path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Repository{path: absPath, mu: lockForPath(absPath)}, nil
}

func (r *Repository) Load(ctx context.Context) (map[string]domain.MonitoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	entries := make(map[string]domain.MonitoredEntry, len(file.Entries))
	for _, raw := range file.Entries {
		entry := fromSchema(raw)
		entries[entry.Key()] = entry
	}
	return entries, nil
}

func (r *Repository) Save(ctx context.Context, entries map[string]domain.MonitoredEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := fileSchema{Version: currentSchemaVersion}
	for _, entry := range entries {
		file.Entries = append(file.Entries, toSchema(entry))
	}
	return r.writeSchema(file)
}

func (r *Repository) Upsert(ctx context.Context, id domain.AccountID, sender, status, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	encoded := toSchema(domain.MonitoredEntry{
		ID:              id,
		Sender:          sender,
		LastKnownStatus: status,
		ChannelID:       channelID,
		AddedAt:         now,
		LastCheck:       now,
	})

	updated := false
	for i := range file.Entries {
		if file.Entries[i].ID == encoded.ID {
			// Keep the original AddedAt; everything else refreshes.
			encoded.AddedAt = file.Entries[i].AddedAt
			file.Entries[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Entries = append(file.Entries, encoded)
	}

	return r.writeSchema(file)
}

func (r *Repository) UpdateStatus(ctx context.Context, id domain.AccountID, status string, at time.Time) error {
	return r.mutate(ctx, id, func(entry *entrySchema) {
		entry.LastKnownStatus = status
		entry.LastCheck = formatTime(at)
	})
}

func (r *Repository) Touch(ctx context.Context, id domain.AccountID, at time.Time) error {
	return r.mutate(ctx, id, func(entry *entrySchema) {
		entry.LastCheck = formatTime(at)
	})
}

func (r *Repository) mutate(ctx context.Context, id domain.AccountID, apply func(*entrySchema)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	for i := range file.Entries {
		if file.Entries[i].ID == string(id) {
			apply(&file.Entries[i])
			return r.writeSchema(file)
		}
	}

	return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read directory file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode directory file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), directoryDirMode); err != nil {
		return fmt.Errorf("create directory dir: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode directory file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp directory file: %w", err)
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
		return fmt.Errorf("write temp directory file: %w", err)
	}
	if err := tempFile.Chmod(directoryFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp directory file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp directory file: %w", err)
	}

	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace directory file: %w", err)
	}
	cleanup = false

	if err := os.Chmod(r.path, directoryFileMode); err != nil {
		return fmt.Errorf("chmod directory file: %w", err)
	}

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
