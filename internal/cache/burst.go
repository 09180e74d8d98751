package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

const DefaultBurstDuration = 60 * time.Second

// BurstSession is the single process-wide high-alert state. While active the
// cache store reports every snapshot as stale, so the handful of ids under
// surveillance get near-real-time refreshes without touching the bulk TTL.
//
// Activating while already active only unions the target set; the timer is
// not restarted. Expiry is checked by the pollers each cycle, the session
// never self-schedules.
type BurstSession struct {
	mu        sync.Mutex
	clock     ports.Clock
	duration  time.Duration
	active    bool
	startedAt time.Time
	targets   map[domain.AccountID]struct{}
	logger    zerolog.Logger
}

func NewBurstSession(duration time.Duration, clock ports.Clock, logger zerolog.Logger) *BurstSession {
	if duration <= 0 {
		duration = DefaultBurstDuration
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &BurstSession{
		clock:    clock,
		duration: duration,
		targets:  map[domain.AccountID]struct{}{},
		logger:   logger.With().Str("component", "burst").Logger(),
	}
}

func (b *BurstSession) Activate(id domain.AccountID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		b.active = true
		b.startedAt = b.clock.Now()
		b.logger.Info().Str("account_id", string(id)).Msg("burst mode on")
	}
	b.targets[id] = struct{}{}
}

// CheckExpiry ends the session once the fixed duration has elapsed. Must be
// called by the poller every cycle.
func (b *BurstSession) CheckExpiry() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return
	}
	if b.clock.Now().Sub(b.startedAt) >= b.duration {
		b.active = false
		b.startedAt = time.Time{}
		b.targets = map[domain.AccountID]struct{}{}
		b.logger.Info().Msg("burst mode off")
	}
}

// Deactivate ends the session early for a target that reached a terminal
// status. Cycle-level expiry would get there eventually; this just stops the
// forced refreshes sooner.
func (b *BurstSession) Deactivate(id domain.AccountID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.targets, id)
	if b.active {
		b.active = false
		b.logger.Info().Str("account_id", string(id)).Msg("burst mode ended early")
	}
	if len(b.targets) == 0 {
		b.startedAt = time.Time{}
	}
}

func (b *BurstSession) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *BurstSession) ActiveFor(id domain.AccountID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return false
	}
	_, ok := b.targets[id]
	return ok
}

func (b *BurstSession) Targets() []domain.AccountID {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]domain.AccountID, 0, len(b.targets))
	for id := range b.targets {
		ids = append(ids, id)
	}
	return ids
}
