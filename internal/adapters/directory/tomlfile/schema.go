package tomlfile

import (
	"fmt"
	"time"

	"github.com/bnema/senderwatch/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version int           `toml:"version"`
	Entries []entrySchema `toml:"entries"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported directory schema version %d (current %d)", s.Version, currentSchemaVersion)
	}
	return nil
}

type entrySchema struct {
	ID              string `toml:"id"`
	Sender          string `toml:"sender"`
	LastKnownStatus string `toml:"last_known_status"`
	ChannelID       string `toml:"channel_id"`
	AddedAt         string `toml:"added_at"`
	LastCheck       string `toml:"last_check"`
}

func toSchema(entry domain.MonitoredEntry) entrySchema {
	return entrySchema{
		ID:              string(entry.ID),
		Sender:          entry.Sender,
		LastKnownStatus: entry.LastKnownStatus,
		ChannelID:       entry.ChannelID,
		AddedAt:         formatTime(entry.AddedAt),
		LastCheck:       formatTime(entry.LastCheck),
	}
}

func fromSchema(entry entrySchema) domain.MonitoredEntry {
	return domain.MonitoredEntry{
		ID:              domain.AccountID(entry.ID),
		Sender:          entry.Sender,
		LastKnownStatus: entry.LastKnownStatus,
		ChannelID:       entry.ChannelID,
		AddedAt:         parseTime(entry.AddedAt),
		LastCheck:       parseTime(entry.LastCheck),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
