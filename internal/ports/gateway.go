package ports

import (
	"context"

	"github.com/bnema/senderwatch/internal/domain"
)

// FetchGateway pulls account batches from the remote dashboard. A non-nil
// error means the caller keeps whatever stale snapshot it already has.
// Implementations may retry internally once when the source reports an
// expired authorization.
type FetchGateway interface {
	FetchBatch(ctx context.Context) ([]domain.AccountRecord, error)
}

// AccountSubmitter registers a new sender on the dashboard.
type AccountSubmitter interface {
	AddAccount(ctx context.Context, sub domain.Submission) (string, error)
}

// Notifier delivers status-change events. Fire and forget: implementations
// log their own failures and never propagate them into the watch loops.
type Notifier interface {
	Notify(ctx context.Context, event domain.StatusChangeEvent, channelID string)
}

// ProgressReporter surfaces intermediate discovery/tracking state. Purely
// observational.
type ProgressReporter interface {
	Report(ctx context.Context, progress domain.TrackProgress)
}
