package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/cache"
	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

type MonitorConfig struct {
	IdleInterval time.Duration
	ErrorBackoff time.Duration

	// Cycle cadence bands, chosen from the set of tracked statuses. A
	// sender still logging in warrants the short band; usable senders the
	// medium one; everything else the long one.
	HighPriorityBand Band
	ActionableBand   Band
	QuietBand        Band
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.IdleInterval <= 0 {
		c.IdleInterval = 30 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 30 * time.Second
	}
	if c.HighPriorityBand == (Band{}) {
		c.HighPriorityBand = defaultHighPriorityBand
	}
	if c.ActionableBand == (Band{}) {
		c.ActionableBand = defaultActionableBand
	}
	if c.QuietBand == (Band{}) {
		c.QuietBand = defaultQuietBand
	}
	return c
}

// Monitor is the indefinite re-scan of every monitored entry. One batch
// fetch per cycle is amortized across all of them; per-entry failures are
// logged and skipped so a single bad entry cannot stall the rest.
type Monitor struct {
	store     *cache.Store
	gateway   ports.FetchGateway
	directory ports.AccountDirectory
	notifier  ports.Notifier
	clock     ports.Clock
	cfg       MonitorConfig
	logger    zerolog.Logger
}

func NewMonitor(
	store *cache.Store,
	gateway ports.FetchGateway,
	directory ports.AccountDirectory,
	notifier ports.Notifier,
	clock ports.Clock,
	cfg MonitorConfig,
	logger zerolog.Logger,
) *Monitor {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Monitor{
		store:     store,
		gateway:   gateway,
		directory: directory,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "monitor").Logger(),
	}
}

// Run loops until the context is canceled. The loop never terminates on a
// transient error: cycle-level failures back off and continue.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().Msg("continuous monitor started")

	for {
		delay := m.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(delay):
		}
	}
}

// RunCycle executes one re-scan pass and returns how long to sleep before
// the next one.
func (m *Monitor) RunCycle(ctx context.Context) time.Duration {
	entries, err := m.directory.Load(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("load monitored entries failed")
		return m.cfg.ErrorBackoff
	}
	if len(entries) == 0 {
		return m.cfg.IdleInterval
	}

	m.refreshIfStale(ctx)

	byID := make(map[domain.AccountID]domain.AccountRecord)
	for _, record := range m.store.Snapshot() {
		if record.HasID() {
			byID[record.ID] = record
		}
	}

	changes := 0
	statuses := make([]string, 0, len(entries))

	for _, entry := range entries {
		status, changed := m.checkEntry(ctx, entry, byID)
		statuses = append(statuses, status)
		if changed {
			changes++
		}
	}

	m.store.TTL().Adjust(changes)

	delay := m.nextDelay(statuses)
	m.logger.Debug().
		Dur("next_check", delay).
		Dur("ttl", m.store.TTL().Current()).
		Int("changes", changes).
		Msg("cycle complete")
	return delay
}

// checkEntry diffs one monitored entry against the current batch and returns
// its effective status plus whether it changed. Every failure in here is
// per-entry: logged, never propagated.
func (m *Monitor) checkEntry(
	ctx context.Context,
	entry domain.MonitoredEntry,
	byID map[domain.AccountID]domain.AccountRecord,
) (status string, changed bool) {
	lastKnown := domain.NormalizeStatus(entry.LastKnownStatus)

	record, ok := byID[entry.ID]
	if !ok {
		// The source may be temporarily inconsistent; skip, never delete.
		m.logger.Warn().
			Str("account_id", string(entry.ID)).
			Msg("account missing from batch")
		return lastKnown, false
	}

	now := m.clock.Now()
	current := domain.NormalizeStatus(record.Status)

	if current == lastKnown {
		if err := m.directory.Touch(ctx, entry.ID, now); err != nil {
			m.logger.Warn().Err(err).Str("account_id", string(entry.ID)).Msg("touch failed")
		}
		return current, false
	}

	logEvent := m.logger.Info().
		Str("sender", entry.Sender).
		Str("from", lastKnown).
		Str("to", current)
	if note := domain.AttentionNote(current); note != "" {
		logEvent = logEvent.Str("note", note)
	}
	logEvent.Msg("status change detected")

	if err := m.directory.UpdateStatus(ctx, entry.ID, current, now); err != nil {
		m.logger.Error().Err(err).Str("account_id", string(entry.ID)).Msg("persist status failed")
	}

	if m.notifier != nil {
		m.notifier.Notify(ctx, domain.StatusChangeEvent{
			ID:        entry.ID,
			Sender:    entry.Sender,
			OldStatus: lastKnown,
			NewStatus: current,
			Elapsed:   now.Sub(entry.LastCheck),
			Record:    record,
		}, entry.ChannelID)
	}

	return current, true
}

func (m *Monitor) refreshIfStale(ctx context.Context) {
	if m.store.IsValid() {
		return
	}

	records, err := m.gateway.FetchBatch(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("batch fetch failed")
		m.store.Update(nil, false)
		return
	}
	m.store.Update(records, true)
}

func (m *Monitor) nextDelay(statuses []string) time.Duration {
	var anyActionable bool
	for _, status := range statuses {
		if domain.NormalizeStatus(status) == "LOGGING" {
			return m.cfg.HighPriorityBand.pick()
		}
		if domain.IsActionableStatus(status) {
			anyActionable = true
		}
	}
	if anyActionable {
		return m.cfg.ActionableBand.pick()
	}
	return m.cfg.QuietBand.pick()
}
