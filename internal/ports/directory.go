package ports

import (
	"context"
	"time"

	"github.com/bnema/senderwatch/internal/domain"
)

// AccountDirectory persists the set of monitored entries. The watch loops
// never delete entries; removal is an operator concern.
type AccountDirectory interface {
	Load(ctx context.Context) (map[string]domain.MonitoredEntry, error)
	Save(ctx context.Context, entries map[string]domain.MonitoredEntry) error
	Upsert(ctx context.Context, id domain.AccountID, sender, status, channelID string) error
	UpdateStatus(ctx context.Context, id domain.AccountID, status string, at time.Time) error
	Touch(ctx context.Context, id domain.AccountID, at time.Time) error
}

// ExportSink receives batches of sender emails bound for the external
// spreadsheet. The whole batch succeeds or fails as one append.
type ExportSink interface {
	AppendSenders(ctx context.Context, senders []string) error
}
