// Package pid implements the PID controller used by every motion primitive,
// including its settle and timeout exit conditions.
package pid

import (
	"fmt"
	"math"
	"time"
)

// ExitConditions hold the conditions under which a controller considers its
// motion finished.
type ExitConditions struct {
	// SettleError is the error band; the controller must stay inside it for
	// SettleTime to be settled.
	SettleError float64       `yaml:"settle_error" json:"settle_error"`
	SettleTime  time.Duration `yaml:"settle_time" json:"settle_time"`
	// Timeout ends the motion regardless of error.  Zero disables it.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type Constants struct {
	KP float64 `yaml:"kp" json:"kp"`
	KI float64 `yaml:"ki" json:"ki"`
	KD float64 `yaml:"kd" json:"kd"`
	// StartI is the error magnitude below which the integral accumulates.
	// Zero accumulates everywhere.
	StartI float64 `yaml:"start_i" json:"start_i"`

	ExitConditions `yaml:",inline" json:"exit"`
}

func (c Constants) String() string {
	return fmt.Sprintf("kp=%.3f ki=%.3f kd=%.3f start_i=%.2f", c.KP, c.KI, c.KD, c.StartI)
}

// Reason reports why a controller finished.
type Reason int

const (
	Running Reason = iota
	Settled
	TimedOut
)

func (r Reason) String() string {
	switch r {
	case Running:
		return "running"
	case Settled:
		return "settled"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Controller is a single PID loop.  All time accounting uses the dt passed to
// Compute so that behaviour does not depend on wall-clock jitter.
type Controller struct {
	Constants
	// MaxOutput clamps the output magnitude when non-zero.
	MaxOutput float64

	integral      float64
	previousError float64
	haveError     bool

	err     float64
	output  float64
	inBand  time.Duration
	elapsed time.Duration
}

func New(c Constants) *Controller {
	return &Controller{Constants: c}
}

// Reset discards all accumulated state.  Called at the start of every motion.
func (c *Controller) Reset() {
	c.integral = 0
	c.Retarget()
}

// Retarget restarts the exit timers and the derivative but keeps the
// integral, for moving to a new target without stopping.
func (c *Controller) Retarget() {
	c.previousError = 0
	c.haveError = false
	c.err = 0
	c.output = 0
	c.inBand = 0
	c.elapsed = 0
}

// Compute advances the controller by dt towards target and returns the new
// output.
func (c *Controller) Compute(target, current float64, dt time.Duration) float64 {
	return c.ComputeError(target-current, dt)
}

// ComputeError is Compute for callers that have already formed the error,
// for example a wrapped heading difference.
func (c *Controller) ComputeError(err float64, dt time.Duration) float64 {
	secs := dt.Seconds()

	var derivative float64
	if c.haveError && secs > 0 {
		derivative = (err - c.previousError) / secs
	}

	if c.haveError && math.Signbit(err) != math.Signbit(c.previousError) {
		// Crossed the target.
		c.integral = 0
	}
	if c.StartI == 0 || math.Abs(err) < c.StartI {
		c.integral += err * secs
	}

	out := c.KP*err + c.KI*c.integral + c.KD*derivative
	if c.MaxOutput > 0 {
		out = clamp(out, c.MaxOutput)
	}

	c.previousError = err
	c.haveError = true
	c.err = err
	c.output = out

	c.elapsed += dt
	if c.InBand() {
		c.inBand += dt
	} else {
		c.inBand = 0
	}
	return out
}

// Error returns the error from the last Compute.
func (c *Controller) Error() float64 {
	return c.err
}

func (c *Controller) Output() float64 {
	return c.output
}

func (c *Controller) Integral() float64 {
	return c.integral
}

func (c *Controller) Elapsed() time.Duration {
	return c.elapsed
}

// InBand reports whether the last error was inside the settle band.
func (c *Controller) InBand() bool {
	return c.haveError && math.Abs(c.err) < c.SettleError
}

// Exit reports Settled once the error has stayed in band for SettleTime, or
// TimedOut once Timeout has elapsed, whichever comes first.
func (c *Controller) Exit() Reason {
	if c.InBand() && c.inBand >= c.SettleTime {
		return Settled
	}
	if c.Timeout > 0 && c.elapsed >= c.Timeout {
		return TimedOut
	}
	return Running
}

func (c *Controller) IsSettled() bool {
	return c.Exit() != Running
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
