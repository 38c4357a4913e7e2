package pid

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 10 * time.Millisecond

func TestConvergesOnFirstOrderPlant(t *testing.T) {
	c := New(Constants{
		KP: 2,
		ExitConditions: ExitConditions{
			SettleError: 0.1,
			SettleTime:  50 * time.Millisecond,
			Timeout:     10 * time.Second,
		},
	})
	c.MaxOutput = 5

	position := 0.0
	lastOutput := math.Inf(1)
	var elapsed time.Duration
	for !c.IsSettled() {
		out := c.Compute(10, position, dt)
		if out < c.MaxOutput {
			// Inside the proportional band the output must fall every tick.
			require.Less(t, math.Abs(out), lastOutput, "output grew at %v", elapsed)
			lastOutput = math.Abs(out)
		}
		position += out * dt.Seconds()
		elapsed += dt
		require.Less(t, elapsed, 3*time.Second, "did not settle")
	}
	assert.Equal(t, Settled, c.Exit())
	assert.InDelta(t, 10, position, 0.1)
}

func TestTimeoutAlwaysEnds(t *testing.T) {
	c := New(Constants{
		KP: 1,
		ExitConditions: ExitConditions{
			SettleError: 0.1,
			SettleTime:  50 * time.Millisecond,
			Timeout:     200 * time.Millisecond,
		},
	})
	ticks := 0
	for !c.IsSettled() {
		c.Compute(5, 0, dt)
		ticks++
		require.LessOrEqual(t, ticks, 100)
	}
	assert.Equal(t, TimedOut, c.Exit())
	assert.Equal(t, 20, ticks)
}

func TestSettleNeedsContinuousBand(t *testing.T) {
	c := New(Constants{
		KP: 1,
		ExitConditions: ExitConditions{
			SettleError: 1,
			SettleTime:  30 * time.Millisecond,
		},
	})
	for _, e := range []float64{0.5, 0.5, 2, 0.5, 0.5} {
		c.ComputeError(e, dt)
		assert.Equal(t, Running, c.Exit())
	}
	assert.True(t, c.InBand())
	c.ComputeError(0.5, dt)
	assert.Equal(t, Settled, c.Exit())
}

func TestIntegralOnlyNearTarget(t *testing.T) {
	c := New(Constants{KI: 1, StartI: 5})
	c.ComputeError(10, dt)
	assert.Zero(t, c.Integral())
	c.ComputeError(3, dt)
	assert.InDelta(t, 0.03, c.Integral(), 1e-12)
	c.ComputeError(4, dt)
	assert.InDelta(t, 0.07, c.Integral(), 1e-12)

	// Crossing the target clears the integral before accumulating again.
	c.ComputeError(-1, dt)
	assert.InDelta(t, -0.01, c.Integral(), 1e-12)
}

func TestDerivativeStartsClean(t *testing.T) {
	c := New(Constants{KD: 1})
	assert.Zero(t, c.ComputeError(100, dt))
	assert.InDelta(t, -1000, c.ComputeError(90, dt), 1e-9)

	c.Reset()
	assert.Zero(t, c.ComputeError(50, dt))
}

func TestRetargetKeepsIntegral(t *testing.T) {
	c := New(Constants{KI: 1, ExitConditions: ExitConditions{Timeout: 15 * time.Millisecond}})
	c.ComputeError(2, dt)
	c.ComputeError(2, dt)
	require.Equal(t, TimedOut, c.Exit())

	c.Retarget()
	assert.InDelta(t, 0.04, c.Integral(), 1e-12)
	assert.Equal(t, Running, c.Exit())
	assert.Zero(t, c.Elapsed())

	c.Reset()
	assert.Zero(t, c.Integral())
}

func TestOutputClamp(t *testing.T) {
	c := New(Constants{KP: 100})
	c.MaxOutput = 127
	assert.Equal(t, 127.0, c.ComputeError(10, dt))
	assert.Equal(t, -127.0, c.ComputeError(-10, dt))
}
