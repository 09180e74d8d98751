package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLControllerStartsAtNormal(t *testing.T) {
	t.Parallel()

	c := NewTTLController(TTLLevels{}, zerolog.Nop())
	assert.Equal(t, DefaultTTLNormal, c.Current())
	assert.Zero(t, c.QuietCycles())
}

func TestTTLControllerBusyThenQuietTrace(t *testing.T) {
	t.Parallel()

	c := NewTTLController(TTLLevels{}, zerolog.Nop())

	// A busy cycle tightens immediately; backing off needs three quiet
	// cycles in a row.
	trace := []struct {
		changes   int
		wantTTL   time.Duration
		wantQuiet int
	}{
		{changes: 6, wantTTL: DefaultTTLMin, wantQuiet: 0},
		{changes: 1, wantTTL: DefaultTTLMin, wantQuiet: 1},
		{changes: 1, wantTTL: DefaultTTLMin, wantQuiet: 2},
		{changes: 1, wantTTL: DefaultTTLMax, wantQuiet: 3},
	}

	for i, step := range trace {
		c.Adjust(step.changes)
		require.Equal(t, step.wantTTL, c.Current(), "step %d", i)
		require.Equal(t, step.wantQuiet, c.QuietCycles(), "step %d", i)
	}
}

func TestTTLControllerModerateChangesResetQuietStreak(t *testing.T) {
	t.Parallel()

	c := NewTTLController(TTLLevels{}, zerolog.Nop())

	c.Adjust(0)
	c.Adjust(0)
	require.Equal(t, 2, c.QuietCycles())

	// Two changes is enough activity to break the streak.
	c.Adjust(2)
	assert.Equal(t, DefaultTTLNormal, c.Current())
	assert.Zero(t, c.QuietCycles())

	c.Adjust(0)
	assert.Equal(t, DefaultTTLNormal, c.Current())
}

func TestTTLControllerRecoversFromMax(t *testing.T) {
	t.Parallel()

	c := NewTTLController(TTLLevels{}, zerolog.Nop())

	for range 3 {
		c.Adjust(0)
	}
	require.Equal(t, DefaultTTLMax, c.Current())

	c.Adjust(7)
	assert.Equal(t, DefaultTTLMin, c.Current())
	assert.Zero(t, c.QuietCycles())
}

func TestTTLControllerCustomLevels(t *testing.T) {
	t.Parallel()

	levels := TTLLevels{Min: time.Second, Normal: 2 * time.Second, Max: 3 * time.Second}
	c := NewTTLController(levels, zerolog.Nop())

	require.Equal(t, 2*time.Second, c.Current())
	c.Adjust(9)
	assert.Equal(t, time.Second, c.Current())
}
