// Package motion turns motion requests into per-tick left/right actuator
// commands.
//
// A Request is validated and started once, producing a Primitive.  The
// executor then calls Step once per control tick with the latest pose until
// the primitive reports an Exit.
package motion

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/interference"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

// Exit is the way a primitive finished.
type Exit int

const (
	ExitNone Exit = iota
	ExitSettled
	ExitTimedOut
	// ExitBlocked means the interference monitor saw the robot stalled.  It
	// is treated as settled.
	ExitBlocked
	// ExitChained means a chained motion reached its hand-over error.
	ExitChained
)

func (e Exit) String() string {
	switch e {
	case ExitNone:
		return "none"
	case ExitSettled:
		return "settled"
	case ExitTimedOut:
		return "timed out"
	case ExitBlocked:
		return "blocked"
	case ExitChained:
		return "chained"
	default:
		return fmt.Sprintf("exit(%d)", int(e))
	}
}

func (e Exit) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Env is what a primitive is started from.
type Env struct {
	// Start is the pose snapshot taken when the motion begins.
	Start odom.Pose
	// Heading is the heading the previous motion was aiming for.  Drives hold
	// it rather than whatever heading the robot drifted to.
	Heading   float64
	Constants Constants
	Settings  Settings
}

type Tick struct {
	Pose     odom.Pose
	Previous odom.Pose
	DT       time.Duration
	// Missing is the set of tracking sources absent on this tick.
	Missing odom.Missing
}

// seesTravel reports whether forward travel shows up in the pose.
func (t Tick) seesTravel() bool {
	return !t.Missing.Has(odom.SourceLeft) || !t.Missing.Has(odom.SourceRight)
}

// seesRotation reports whether turning shows up in the pose.
func (t Tick) seesRotation() bool {
	if !t.Missing.Has(odom.SourceHeading) {
		return true
	}
	return !t.Missing.Has(odom.SourceLeft) && !t.Missing.Has(odom.SourceRight)
}

func (t Tick) linear(dir r2.Vec) float64 {
	if t.DT <= 0 {
		return 0
	}
	return r2.Dot(r2.Sub(t.Pose.Position(), t.Previous.Position()), dir) / t.DT.Seconds()
}

func (t Tick) speed() float64 {
	if t.DT <= 0 {
		return 0
	}
	return r2.Norm(r2.Sub(t.Pose.Position(), t.Previous.Position())) / t.DT.Seconds()
}

func (t Tick) angular() float64 {
	if t.DT <= 0 {
		return 0
	}
	return (t.Pose.Theta - t.Previous.Theta) / t.DT.Seconds()
}

// Output is a primitive's command for one tick.
type Output struct {
	Left, Right float64
	// InBand is true while the controlling error is inside its settle band.
	InBand bool
	Exit   Exit
	// Error is the controlling error, for telemetry.
	Error float64
}

type Primitive interface {
	Step(t Tick) Output
	// Progress is how far the motion has gone since it started, in inches
	// for drives and degrees for turns.
	Progress() float64
	SetMaxSpeed(speed float64)
	// TargetHeading is the heading later drives should hold once this motion
	// ends.
	TargetHeading() float64
}

// Start validates r and builds its primitive with fresh controller state.
func Start(r Request, env Env) (Primitive, error) {
	if r == nil {
		return nil, ErrInvalidRequest
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r.start(env), nil
}

func controller(c pid.Constants, override *pid.ExitConditions, speed float64) *pid.Controller {
	if override != nil {
		c.ExitConditions = *override
	}
	ctrl := pid.New(c)
	ctrl.MaxOutput = speed
	ctrl.Reset()
	return ctrl
}

// watch feeds the monitor only while the motion it judges is observed.
// Unobserved ticks restart the stall count.
func watch(m *interference.Monitor, observed bool, expected, linear, angular float64, dt time.Duration) bool {
	if !observed {
		m.Reset()
		return false
	}
	return m.Update(expected, linear, angular, dt)
}

func exitFor(ctrl *pid.Controller, blocked bool) Exit {
	switch {
	case ctrl.Exit() == pid.Settled:
		return ExitSettled
	case blocked:
		return ExitBlocked
	case ctrl.Exit() == pid.TimedOut:
		return ExitTimedOut
	default:
		return ExitNone
	}
}

// mix combines forward and turning outputs into left/right commands, scaling
// both down together if either side would exceed speed.
func mix(forward, turn, speed float64) (left, right float64) {
	left = forward - turn
	right = forward + turn

	m := math.Max(math.Abs(left), math.Abs(right))
	scale := 1.0
	if m > speed {
		scale = speed / m
	}
	return left * scale, right * scale
}

// slew limits how quickly an output may grow in magnitude.  Shrinking is
// never limited.
type slew struct {
	rate float64
	last float64
}

func newSlew(enabled bool, rate float64) slew {
	if !enabled {
		rate = 0
	}
	return slew{rate: rate}
}

func (s *slew) limit(target float64, dt time.Duration) float64 {
	if s.rate <= 0 {
		s.last = target
		return target
	}
	maxDelta := s.rate * dt.Seconds()
	out := target
	if math.Abs(target) > math.Abs(s.last) || math.Signbit(target) != math.Signbit(s.last) {
		if target > s.last+maxDelta {
			out = s.last + maxDelta
		} else if target < s.last-maxDelta {
			out = s.last - maxDelta
		}
	}
	s.last = out
	return out
}

func newMonitor(s Settings) *interference.Monitor {
	return interference.New(s.Interference)
}
