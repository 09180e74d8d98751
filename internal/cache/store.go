// Package cache holds the shared account snapshot with a self-tuning
// freshness window and a temporary burst override. It never fetches anything
// itself: consumers check IsValid, call the fetch gateway when the snapshot
// is stale, and hand the result back through Update.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

type Store struct {
	mu    sync.RWMutex
	clock ports.Clock

	snapshot   []domain.AccountRecord
	capturedAt time.Time

	// Last successful fetch, kept in its own slot so failures can fall
	// back to it (stale-but-available).
	lastGood   []domain.AccountRecord
	lastGoodAt time.Time

	ttl    *TTLController
	burst  *BurstSession
	logger zerolog.Logger
}

func NewStore(ttl *TTLController, burst *BurstSession, clock ports.Clock, logger zerolog.Logger) *Store {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Store{
		clock:  clock,
		ttl:    ttl,
		burst:  burst,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// IsValid reports whether the live snapshot can be served: it exists, it is
// younger than the current freshness window, and no burst session is forcing
// refreshes.
func (s *Store) IsValid() bool {
	if s.burst.Active() {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return false
	}
	return s.clock.Now().Sub(s.capturedAt) < s.ttl.Current()
}

// Update replaces the snapshot after a fetch. On success the result also
// becomes the new fallback; on failure the live slot degrades to the last
// successful snapshot if one exists, otherwise the store stays empty.
func (s *Store) Update(records []domain.AccountRecord, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if success {
		now := s.clock.Now()
		s.snapshot = records
		s.capturedAt = now
		s.lastGood = records
		s.lastGoodAt = now
		return
	}

	if s.lastGood != nil {
		s.logger.Warn().
			Time("captured_at", s.lastGoodAt).
			Msg("fetch failed, serving last successful snapshot")
		s.snapshot = s.lastGood
		s.capturedAt = s.lastGoodAt
	}
}

// Invalidate drops the live snapshot so the next consumer refreshes. The
// fallback slot is left alone.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.capturedAt = time.Time{}
}

// Snapshot returns the current records. Callers must not mutate the returned
// slice; Update swaps the whole slice, it never edits in place.
func (s *Store) Snapshot() []domain.AccountRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// LookupByID scans the live snapshot for an exact id match. Absence is a
// normal outcome during discovery, not an error.
func (s *Store) LookupByID(id domain.AccountID) (domain.AccountRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.snapshot {
		if record.ID == id {
			return record, true
		}
	}
	return domain.AccountRecord{}, false
}

// LookupBySender scans the live snapshot for a sender match, ignoring case
// and surrounding whitespace.
func (s *Store) LookupBySender(sender string) (domain.AccountRecord, bool) {
	sender = strings.ToLower(strings.TrimSpace(sender))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.snapshot {
		if strings.ToLower(strings.TrimSpace(record.Sender)) == sender {
			return record, true
		}
	}
	return domain.AccountRecord{}, false
}

// TTL exposes the controller so pollers can feed change counts back.
func (s *Store) TTL() *TTLController {
	return s.ttl
}

// Burst exposes the burst session shared with the pollers.
func (s *Store) Burst() *BurstSession {
	return s.burst
}
