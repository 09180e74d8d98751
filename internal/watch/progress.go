package watch

import (
	"context"
	"time"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

// LogReporter surfaces discovery/tracking progress through the structured
// log. It is the default reporter when no richer surface is wired.
type LogReporter struct {
	logger zerolog.Logger
}

var _ ports.ProgressReporter = (*LogReporter)(nil)

func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With().Str("component", "progress").Logger()}
}

func (r *LogReporter) Report(_ context.Context, progress domain.TrackProgress) {
	event := r.logger.Info().
		Str("mode", progress.Mode).
		Str("sender", progress.Sender).
		Int("attempt", progress.Attempt).
		Int("max_attempts", progress.MaxAttempts).
		Str("elapsed", durafmt.Parse(progress.Elapsed.Truncate(time.Second)).String())

	if progress.ID != "" {
		event = event.Str("account_id", string(progress.ID))
	}
	if progress.Status != "" {
		event = event.
			Str("status", progress.Status).
			Str("class", string(progress.StatusClass))
	}
	if len(progress.Changes) > 0 {
		event = event.Strs("recent", progress.Changes)
	}

	event.Msg("tracking progress")
}
