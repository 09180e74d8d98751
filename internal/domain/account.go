package domain

import (
	"strings"
	"time"
)

type AccountID string

// AccountRecord is one row of the remote sender dashboard. Every field is the
// display string the dashboard returned; a fresh fetch always produces a whole
// new record, never a partial patch.
type AccountRecord struct {
	ID          AccountID
	Image       string
	Sender      string
	Start       string
	LastUpdate  string
	Taken       string
	Status      string
	Available   string
	Password    string
	BackupCodes string
	Group       string
	GroupNameID string
	Take        string
	Keep        string
}

func (r AccountRecord) HasID() bool {
	return strings.TrimSpace(string(r.ID)) != ""
}

// MonitoredEntry is one account under continuous watch. Entries are keyed by
// the (id, sender) pair and are never deleted by the watch loops.
type MonitoredEntry struct {
	ID              AccountID
	Sender          string
	LastKnownStatus string
	ChannelID       string
	AddedAt         time.Time
	LastCheck       time.Time
}

func (e MonitoredEntry) Key() string {
	return EntryKey(e.ID, e.Sender)
}

func EntryKey(id AccountID, sender string) string {
	return string(id) + "_" + strings.ToLower(strings.TrimSpace(sender))
}

// StatusChangeEvent is emitted when an observed status differs from the last
// known one. It is transient and carries the record as seen at detection time.
type StatusChangeEvent struct {
	ID        AccountID
	Sender    string
	OldStatus string
	NewStatus string
	Elapsed   time.Duration
	Record    AccountRecord
}

// TrackProgress is the freeform payload surfaced by the discovery and
// tracking protocols while they run.
type TrackProgress struct {
	Mode        string
	Sender      string
	ID          AccountID
	Status      string
	StatusClass StatusClass
	Attempt     int
	MaxAttempts int
	Stable      int
	Elapsed     time.Duration
	Changes     []string
}
