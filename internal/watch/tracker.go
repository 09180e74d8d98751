// Package watch implements the three polling protocols over the shared
// snapshot cache: bounded discovery of a newly submitted sender, bounded
// burst tracking of its status, and the indefinite re-scan of every
// monitored account.
package watch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/cache"
	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

const (
	ModeDiscovery = "discovery"
	ModeBurst     = "burst"
	ModeNormal    = "normal"
)

type TrackerConfig struct {
	DiscoveryAttempts    int
	DiscoveryInterval    time.Duration
	TrackingAttempts     int
	BurstInterval        time.Duration
	TransitionalInterval time.Duration
	UnclassifiedInterval time.Duration
	AbsentRetryInterval  time.Duration
}

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.DiscoveryAttempts <= 0 {
		c.DiscoveryAttempts = 15
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = 3 * time.Second
	}
	if c.TrackingAttempts <= 0 {
		c.TrackingAttempts = 40
	}
	if c.BurstInterval <= 0 {
		c.BurstInterval = 2500 * time.Millisecond
	}
	if c.TransitionalInterval <= 0 {
		c.TransitionalInterval = 4 * time.Second
	}
	if c.UnclassifiedInterval <= 0 {
		c.UnclassifiedInterval = 5 * time.Second
	}
	if c.AbsentRetryInterval <= 0 {
		c.AbsentRetryInterval = 2 * time.Second
	}
	return c
}

// TrackResult is what a tracking run produced. Exhausting the attempt budget
// is not an error: partial information beats none, so the last observed
// record is still returned and, when actionable, registered.
type TrackResult struct {
	Found       bool
	Registered  bool
	Record      domain.AccountRecord
	FinalStatus string
	Changes     []domain.StatusChangeEvent
	Elapsed     time.Duration
}

type Tracker struct {
	store     *cache.Store
	gateway   ports.FetchGateway
	directory ports.AccountDirectory
	reporter  ports.ProgressReporter
	clock     ports.Clock
	cfg       TrackerConfig
	logger    zerolog.Logger

	// Transitions into a final state observed while a previous status was
	// already known; a rough measure of how quickly the burst machinery
	// catches real changes.
	fastDetections atomic.Int64
}

func NewTracker(
	store *cache.Store,
	gateway ports.FetchGateway,
	directory ports.AccountDirectory,
	reporter ports.ProgressReporter,
	clock ports.Clock,
	cfg TrackerConfig,
	logger zerolog.Logger,
) *Tracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Tracker{
		store:     store,
		gateway:   gateway,
		directory: directory,
		reporter:  reporter,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "tracker").Logger(),
	}
}

// Discover polls the cache by sender until the newly submitted account shows
// up with an id, then arms burst mode for it. Exhausting the budget means
// the account never appeared; that is reported as not-found, not as an
// error.
func (t *Tracker) Discover(ctx context.Context, sender string) (domain.AccountID, bool, error) {
	start := t.clock.Now()
	t.logger.Info().Str("sender", sender).Msg("looking for new account")

	for attempt := 1; attempt <= t.cfg.DiscoveryAttempts; attempt++ {
		t.refreshIfStale(ctx)

		if record, ok := t.store.LookupBySender(sender); ok && record.HasID() {
			t.logger.Info().
				Str("sender", sender).
				Str("account_id", string(record.ID)).
				Msg("account found")
			t.store.Burst().Activate(record.ID)
			return record.ID, true, nil
		}

		t.report(ctx, domain.TrackProgress{
			Mode:        ModeDiscovery,
			Sender:      sender,
			Attempt:     attempt,
			MaxAttempts: t.cfg.DiscoveryAttempts,
			Elapsed:     t.clock.Now().Sub(start),
		})

		if err := t.sleep(ctx, t.cfg.DiscoveryInterval); err != nil {
			return "", false, err
		}
	}

	t.logger.Warn().Str("sender", sender).Msg("account never appeared")
	return "", false, nil
}

// Track follows a discovered account by id until it reaches a final status
// or the attempt budget runs out. Lookups are by id only; sender lookups are
// ambiguous once the id is known.
func (t *Tracker) Track(ctx context.Context, id domain.AccountID, sender, channelID string) (TrackResult, error) {
	start := t.clock.Now()
	burst := t.store.Burst()

	var (
		lastStatus string
		lastRecord *domain.AccountRecord
		changes    []domain.StatusChangeEvent
		stable     int
	)

	t.logger.Info().
		Str("sender", sender).
		Str("account_id", string(id)).
		Msg("burst tracking started")

	for attempt := 1; attempt <= t.cfg.TrackingAttempts; attempt++ {
		burst.CheckExpiry()

		record, ok := t.lookupByID(ctx, id)
		if !ok {
			// The source may be mid-update; treat absence as transient.
			t.logger.Warn().Str("account_id", string(id)).Msg("account missing from batch")
			if err := t.sleep(ctx, t.cfg.AbsentRetryInterval); err != nil {
				return t.bestEffort(ctx, id, sender, channelID, lastRecord, changes, start), err
			}
			continue
		}
		lastRecord = &record

		status := domain.NormalizeStatus(record.Status)
		class := domain.ClassifyStatus(status)

		if status != lastStatus {
			elapsed := t.clock.Now().Sub(start)
			t.logger.Info().
				Str("sender", sender).
				Str("status", status).
				Dur("elapsed", elapsed).
				Msg("status observed")

			// The first observation seeds lastStatus; only an actual
			// transition counts as a change.
			if lastStatus != "" {
				changes = append(changes, domain.StatusChangeEvent{
					ID:        id,
					Sender:    sender,
					OldStatus: lastStatus,
					NewStatus: status,
					Elapsed:   elapsed,
					Record:    record,
				})

				if class == domain.StatusFinal {
					t.fastDetections.Add(1)
					t.logger.Info().
						Str("from", lastStatus).
						Str("to", status).
						Dur("elapsed", elapsed).
						Msg("fast detection")
				}
			}

			lastStatus = status
			stable = 0
		} else {
			stable++
		}

		mode := ModeNormal
		if burst.Active() {
			mode = ModeBurst
		}
		t.report(ctx, domain.TrackProgress{
			Mode:        mode,
			Sender:      sender,
			ID:          id,
			Status:      status,
			StatusClass: class,
			Attempt:     attempt,
			MaxAttempts: t.cfg.TrackingAttempts,
			Stable:      stable,
			Elapsed:     t.clock.Now().Sub(start),
			Changes:     changeTrail(changes),
		})

		if class == domain.StatusFinal {
			elapsed := t.clock.Now().Sub(start)
			t.logger.Info().
				Str("sender", sender).
				Str("status", status).
				Dur("elapsed", elapsed).
				Msg("final status reached")

			registered := t.registerIfActionable(ctx, id, sender, status, channelID)
			burst.Deactivate(id)

			return TrackResult{
				Found:       true,
				Registered:  registered,
				Record:      record,
				FinalStatus: status,
				Changes:     changes,
				Elapsed:     elapsed,
			}, nil
		}

		interval := t.cfg.UnclassifiedInterval
		switch {
		case burst.ActiveFor(id):
			interval = t.cfg.BurstInterval
		case class == domain.StatusTransitional:
			interval = t.cfg.TransitionalInterval
		}

		if err := t.sleep(ctx, interval); err != nil {
			return t.bestEffort(ctx, id, sender, channelID, lastRecord, changes, start), err
		}
	}

	t.logger.Warn().
		Str("sender", sender).
		Str("last_status", lastStatus).
		Msg("tracking budget exhausted")

	return t.bestEffort(ctx, id, sender, channelID, lastRecord, changes, start), nil
}

// FastDetections reports how many final-state transitions were caught while
// a previous status was already known.
func (t *Tracker) FastDetections() int64 {
	return t.fastDetections.Load()
}

// bestEffort is the timeout-tolerant exit: deactivate burst and, when the
// last observed record is already actionable, register it anyway.
func (t *Tracker) bestEffort(
	ctx context.Context,
	id domain.AccountID,
	sender, channelID string,
	lastRecord *domain.AccountRecord,
	changes []domain.StatusChangeEvent,
	start time.Time,
) TrackResult {
	t.store.Burst().Deactivate(id)

	result := TrackResult{
		Changes: changes,
		Elapsed: t.clock.Now().Sub(start),
	}
	if lastRecord == nil {
		return result
	}

	result.Found = true
	result.Record = *lastRecord
	result.FinalStatus = domain.NormalizeStatus(lastRecord.Status)
	result.Registered = t.registerIfActionable(ctx, id, sender, result.FinalStatus, channelID)
	return result
}

func (t *Tracker) registerIfActionable(ctx context.Context, id domain.AccountID, sender, status, channelID string) bool {
	if !domain.IsActionableStatus(status) {
		return false
	}
	if err := t.directory.Upsert(ctx, id, sender, status, channelID); err != nil {
		t.logger.Error().Err(err).Str("sender", sender).Msg("register for monitoring failed")
		return false
	}
	t.logger.Info().
		Str("sender", sender).
		Str("account_id", string(id)).
		Str("status", status).
		Msg("account registered for monitoring")
	return true
}

func (t *Tracker) lookupByID(ctx context.Context, id domain.AccountID) (domain.AccountRecord, bool) {
	t.refreshIfStale(ctx)
	return t.store.LookupByID(id)
}

// refreshIfStale pulls a fresh batch through the gateway when the snapshot
// is no longer valid. Fetch failures degrade to the stale snapshot and are
// never surfaced past a warning.
func (t *Tracker) refreshIfStale(ctx context.Context) {
	if t.store.IsValid() {
		return
	}

	records, err := t.gateway.FetchBatch(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("batch fetch failed")
		t.store.Update(nil, false)
		return
	}
	t.store.Update(records, true)
}

func (t *Tracker) report(ctx context.Context, progress domain.TrackProgress) {
	if t.reporter == nil {
		return
	}
	t.reporter.Report(ctx, progress)
}

func (t *Tracker) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.clock.After(d):
		return nil
	}
}

// changeTrail keeps the last few observed statuses for progress payloads.
func changeTrail(changes []domain.StatusChangeEvent) []string {
	const keep = 3

	start := 0
	if len(changes) > keep {
		start = len(changes) - keep
	}

	trail := make([]string, 0, keep)
	for _, change := range changes[start:] {
		trail = append(trail, change.NewStatus)
	}
	return trail
}
