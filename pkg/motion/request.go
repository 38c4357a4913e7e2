package motion

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/pid"
)

var ErrInvalidRequest = errors.New("invalid motion request")

// Request is one of DriveDistance, TurnToAngle, SwingTurn or
// OdomPointSequence.
type Request interface {
	Validate() error
	String() string

	start(env Env) Primitive
}

// DriveDistance drives straight along the held heading.  A negative distance
// drives in reverse.
type DriveDistance struct {
	Distance float64
	Speed    float64
	// Slew ramps the forward output up instead of stepping it.
	Slew bool
	// Chain finishes the motion as soon as it is within Settings.ChainDrive
	// of the target, without settling.
	Chain bool
	Exit  *pid.ExitConditions
}

func (r DriveDistance) Validate() error {
	if err := finite("distance", r.Distance); err != nil {
		return err
	}
	if err := validSpeed(r.Speed); err != nil {
		return err
	}
	return validExit(r.Exit)
}

func (r DriveDistance) String() string {
	return fmt.Sprintf("drive %.2fin @%.0f", r.Distance, r.Speed)
}

// TurnToAngle turns in place to a field heading, or by a relative amount from
// the heading at issue time.
type TurnToAngle struct {
	Angle    float64
	Speed    float64
	Relative bool
	// Shortest turns whichever way is shorter instead of to the literal
	// continuous heading.
	Shortest bool
	Chain    bool
	Exit     *pid.ExitConditions
}

func (r TurnToAngle) Validate() error {
	if err := finite("angle", r.Angle); err != nil {
		return err
	}
	if err := validSpeed(r.Speed); err != nil {
		return err
	}
	return validExit(r.Exit)
}

func (r TurnToAngle) String() string {
	if r.Relative {
		return fmt.Sprintf("turn by %.1f @%.0f", r.Angle, r.Speed)
	}
	return fmt.Sprintf("turn to %.1f @%.0f", r.Angle, r.Speed)
}

type SwingSide int

const (
	SwingLeft SwingSide = iota
	SwingRight
)

func (s SwingSide) String() string {
	switch s {
	case SwingLeft:
		return "left"
	case SwingRight:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// SwingTurn turns by driving one side only.  The other side is held at zero,
// or follows in the same direction scaled by OppositeSpeed/Speed.
type SwingTurn struct {
	Side          SwingSide
	Angle         float64
	Speed         float64
	OppositeSpeed float64
	Relative      bool
	Chain         bool
	Exit          *pid.ExitConditions
}

func (r SwingTurn) Validate() error {
	if r.Side != SwingLeft && r.Side != SwingRight {
		return errors.Wrapf(ErrInvalidRequest, "unknown swing side %v", r.Side)
	}
	if err := finite("angle", r.Angle); err != nil {
		return err
	}
	if err := validSpeed(r.Speed); err != nil {
		return err
	}
	if err := finite("opposite speed", r.OppositeSpeed); err != nil {
		return err
	}
	if r.OppositeSpeed < 0 || r.OppositeSpeed > r.Speed {
		return errors.Wrapf(ErrInvalidRequest, "opposite speed %.1f outside [0, %.1f]", r.OppositeSpeed, r.Speed)
	}
	return validExit(r.Exit)
}

func (r SwingTurn) String() string {
	return fmt.Sprintf("%v swing to %.1f @%.0f", r.Side, r.Angle, r.Speed)
}

type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "fwd"
	case Reverse:
		return "rev"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Waypoint is one target of an OdomPointSequence.
type Waypoint struct {
	Position   r2.Vec
	Heading    float64
	HasHeading bool
	Direction  Direction
	MaxSpeed   float64
}

func Point(x, y float64, dir Direction, speed float64) Waypoint {
	return Waypoint{Position: r2.Vec{X: x, Y: y}, Direction: dir, MaxSpeed: speed}
}

// Facing returns a copy of the waypoint that finishes at the given heading.
func (w Waypoint) Facing(heading float64) Waypoint {
	w.Heading = heading
	w.HasHeading = true
	return w
}

func (w Waypoint) String() string {
	s := fmt.Sprintf("(%.1f, %.1f)", w.Position.X, w.Position.Y)
	if w.HasHeading {
		s += fmt.Sprintf("@%.1f", w.Heading)
	}
	return fmt.Sprintf("%s %v %.0f", s, w.Direction, w.MaxSpeed)
}

// OdomPointSequence drives through each point in order using the pose
// estimate.  Every point but the last is passed through without stopping;
// only the last may carry a heading.
type OdomPointSequence struct {
	Points []Waypoint
	Slew   bool
	Exit   *pid.ExitConditions
}

func (r OdomPointSequence) Validate() error {
	if len(r.Points) == 0 {
		return errors.Wrap(ErrInvalidRequest, "no waypoints")
	}
	for i, p := range r.Points {
		if math.IsNaN(p.Position.X) || math.IsInf(p.Position.X, 0) ||
			math.IsNaN(p.Position.Y) || math.IsInf(p.Position.Y, 0) {
			return errors.Wrapf(ErrInvalidRequest, "waypoint %d: non-finite position", i)
		}
		if p.Direction != Forward && p.Direction != Reverse {
			return errors.Wrapf(ErrInvalidRequest, "waypoint %d: unknown direction %v", i, p.Direction)
		}
		if err := validSpeed(p.MaxSpeed); err != nil {
			return errors.Wrapf(err, "waypoint %d", i)
		}
		if p.HasHeading {
			if i != len(r.Points)-1 {
				return errors.Wrapf(ErrInvalidRequest, "waypoint %d: only the final waypoint may set a heading", i)
			}
			if err := finite("heading", p.Heading); err != nil {
				return errors.Wrapf(err, "waypoint %d", i)
			}
		}
	}
	return validExit(r.Exit)
}

func (r OdomPointSequence) String() string {
	return fmt.Sprintf("odom %v", r.Points)
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrInvalidRequest, "%s is not finite", name)
	}
	return nil
}

func validSpeed(speed float64) error {
	if !(speed > 0 && speed <= MaxSpeed) {
		return errors.Wrapf(ErrInvalidRequest, "speed %v outside (0, %d]", speed, MaxSpeed)
	}
	return nil
}

func validExit(e *pid.ExitConditions) error {
	if e == nil {
		return nil
	}
	if !(e.SettleError >= 0) || math.IsInf(e.SettleError, 0) || e.SettleTime < 0 || e.Timeout < 0 {
		return errors.Wrap(ErrInvalidRequest, "exit conditions must be finite and non-negative")
	}
	return nil
}
