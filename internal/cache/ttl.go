package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTTLMin    = 5 * time.Second
	DefaultTTLNormal = 15 * time.Second
	DefaultTTLMax    = 60 * time.Second

	// Quiet cycles needed before the freshness window backs off to max.
	quietCyclesForMax = 3

	busyChangeThreshold   = 5
	normalChangeThreshold = 2
)

// TTLLevels are the three fixed freshness windows the controller steps
// between.
type TTLLevels struct {
	Min    time.Duration
	Normal time.Duration
	Max    time.Duration
}

func (l TTLLevels) withDefaults() TTLLevels {
	if l.Min <= 0 {
		l.Min = DefaultTTLMin
	}
	if l.Normal <= 0 {
		l.Normal = DefaultTTLNormal
	}
	if l.Max <= 0 {
		l.Max = DefaultTTLMax
	}
	return l
}

// TTLController retunes the snapshot freshness window from per-cycle change
// counts. A burst of changes tightens the window immediately; backing off to
// the max window requires three consecutive quiet cycles so single-cycle
// noise cannot flap it.
type TTLController struct {
	mu          sync.Mutex
	levels      TTLLevels
	current     time.Duration
	quietCycles int
	logger      zerolog.Logger
}

func NewTTLController(levels TTLLevels, logger zerolog.Logger) *TTLController {
	levels = levels.withDefaults()
	return &TTLController{
		levels:  levels,
		current: levels.Normal,
		logger:  logger.With().Str("component", "ttl").Logger(),
	}
}

// Adjust runs once per re-scan cycle. The new window takes effect on the next
// validity check; an already-fresh snapshot is never retroactively
// invalidated.
func (c *TTLController) Adjust(changeCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.current

	switch {
	case changeCount >= busyChangeThreshold:
		c.current = c.levels.Min
		c.quietCycles = 0
	case changeCount >= normalChangeThreshold:
		c.current = c.levels.Normal
		c.quietCycles = 0
	default:
		// The counter keeps incrementing while parked at max; that is
		// harmless and keeps the reset condition in one place.
		c.quietCycles++
		if c.quietCycles >= quietCyclesForMax {
			c.current = c.levels.Max
		}
	}

	if old != c.current {
		c.logger.Info().
			Dur("old_ttl", old).
			Dur("new_ttl", c.current).
			Int("changes", changeCount).
			Msg("freshness window retuned")
	}
}

// Current returns the freshness window in effect.
func (c *TTLController) Current() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// QuietCycles reports the consecutive low-change cycles observed so far.
func (c *TTLController) QuietCycles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quietCycles
}
