package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimebase_RejectsNonPositiveInterval(t *testing.T) {
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewTimebase(v, time.Time{})
		assert.Error(t, err, "interval %v", v)
	}
}

func TestTimebase_Conversions(t *testing.T) {
	// GIVEN minute resolution
	tb := MustTimebase(1.0 / 60)

	// THEN conversions MUST round-trip through hours
	assert.Equal(t, int64(30), tb.Ticks(0.5))
	assert.Equal(t, int64(60), tb.Ticks(1))
	assert.InDelta(t, 0.5, tb.Hours(30), 1e-12)
	assert.InDelta(t, 2.45, tb.PerTick(147), 1e-12)
	assert.InDelta(t, math.Exp(-2.2/60), tb.DecayFactor(2.2), 1e-15)
}

func TestTimebase_WallClockMapping(t *testing.T) {
	epoch := time.Date(2021, 1, 4, 9, 0, 0, 0, time.UTC)
	tb, err := NewTimebase(1.0/60, epoch)
	require.NoError(t, err)

	assert.Equal(t, epoch.Add(15*time.Minute), tb.WallClock(15))
	assert.Equal(t, int64(15), tb.TickAt(epoch.Add(15*time.Minute)))
	// Instants between ticks map to the following tick.
	assert.Equal(t, int64(16), tb.TickAt(epoch.Add(15*time.Minute+time.Second)))
}
