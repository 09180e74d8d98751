package export

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/ports"
)

const DefaultMaxRetries = 50

type WorkerConfig struct {
	PendingMinInterval time.Duration
	PendingMaxInterval time.Duration
	RetryMinInterval   time.Duration
	RetryMaxInterval   time.Duration
	MaxRetries         int
	ErrorBackoff       time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PendingMinInterval <= 0 {
		c.PendingMinInterval = 1 * time.Second
	}
	if c.PendingMaxInterval <= 0 {
		c.PendingMaxInterval = 10 * time.Second
	}
	if c.RetryMinInterval <= 0 {
		c.RetryMinInterval = 30 * time.Second
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 30 * time.Second
	}
	return c
}

// Worker drains the export queue into the sink on two independent timers:
// a fast one for fresh submissions and a slow one for retries. Batches go to
// the sink whole; a failed append moves every item of the batch one step
// toward the failed bucket.
type Worker struct {
	store   *QueueStore
	sink    ports.ExportSink
	history *History
	clock   ports.Clock
	cfg     WorkerConfig
	logger  zerolog.Logger
}

func NewWorker(store *QueueStore, sink ports.ExportSink, history *History, clock ports.Clock, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Worker{
		store:   store,
		sink:    sink,
		history: history,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "export").Logger(),
	}
}

// RunPending processes fresh submissions until the context is canceled.
func (w *Worker) RunPending(ctx context.Context) error {
	w.logger.Info().
		Dur("min_interval", w.cfg.PendingMinInterval).
		Dur("max_interval", w.cfg.PendingMaxInterval).
		Msg("pending export worker started")

	for {
		delay := jitter(w.cfg.PendingMinInterval, w.cfg.PendingMaxInterval)
		if err := w.ProcessPending(ctx); err != nil {
			w.logger.Error().Err(err).Msg("pending export pass failed")
			delay = w.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(delay):
		}
	}
}

// RunRetry re-attempts previously failed batches until the context is
// canceled.
func (w *Worker) RunRetry(ctx context.Context) error {
	w.logger.Info().
		Dur("min_interval", w.cfg.RetryMinInterval).
		Dur("max_interval", w.cfg.RetryMaxInterval).
		Msg("retry export worker started")

	for {
		delay := jitter(w.cfg.RetryMinInterval, w.cfg.RetryMaxInterval)
		if err := w.ProcessRetry(ctx); err != nil {
			w.logger.Error().Err(err).Msg("retry export pass failed")
			delay = w.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(delay):
		}
	}
}

// ProcessPending pushes the whole pending bucket to the sink once.
func (w *Worker) ProcessPending(ctx context.Context) error {
	batch, err := w.store.pendingBatch()
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	emails := senders(batch)
	w.logger.Info().Int("count", len(emails)).Msg("exporting pending senders")

	if err := w.sink.AppendSenders(ctx, emails); err != nil {
		w.logger.Warn().Err(err).Int("count", len(emails)).Msg("export failed, moving to retry")
		return w.store.resolvePending(false, w.cfg.MaxRetries)
	}

	w.recordHistory(emails)
	return w.store.resolvePending(true, w.cfg.MaxRetries)
}

// ProcessRetry pushes the whole retry bucket to the sink once.
func (w *Worker) ProcessRetry(ctx context.Context) error {
	batch, err := w.store.retryBatch()
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	emails := senders(batch)
	w.logger.Info().Int("count", len(emails)).Msg("retrying sender export")

	if err := w.sink.AppendSenders(ctx, emails); err != nil {
		w.logger.Warn().Err(err).Msg("retry export failed")
		failed, resolveErr := w.store.resolveRetry(false, w.cfg.MaxRetries)
		for _, item := range failed {
			w.logger.Warn().
				Str("sender", item.Sender).
				Int("attempts", item.Attempts).
				Msg("sender export gave up")
		}
		return resolveErr
	}

	w.recordHistory(emails)
	_, err = w.store.resolveRetry(true, w.cfg.MaxRetries)
	return err
}

func (w *Worker) recordHistory(emails []string) {
	if w.history == nil {
		return
	}
	if err := w.history.Record(emails, w.clock.Now()); err != nil {
		w.logger.Warn().Err(err).Msg("export history update failed")
	}
}

func jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}
