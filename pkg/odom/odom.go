// Package odom estimates the robot's field pose from tracking-wheel, drive
// encoder and heading-sensor readings.
//
// Field frame: X/Y in inches, heading in degrees measured from +X, positive
// anticlockwise.  Robot frame: forward along the heading, "left" 90 degrees
// anticlockwise of it.
package odom

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/angle"
)

// Pose is the estimated position and heading of the robot.  Theta is kept
// continuous so that absolute turn targets beyond +/-180 stay meaningful.
type Pose struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

func (p Pose) Position() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Direction is the unit vector along the pose's heading.
func (p Pose) Direction() r2.Vec {
	return Unit(p.Theta)
}

func (p Pose) String() string {
	return fmt.Sprintf("x:%.2f y:%.2f a:%.2f", p.X, p.Y, p.Theta)
}

// Unit returns the unit vector for a heading in degrees.
func Unit(heading float64) r2.Vec {
	rad := angle.Radians(heading)
	return r2.Vec{X: math.Cos(rad), Y: math.Sin(rad)}
}

// HeadingTo returns the field heading, in degrees, from one point to another.
func HeadingTo(from, to r2.Vec) float64 {
	d := r2.Sub(to, from)
	return angle.Degrees(math.Atan2(d.Y, d.X))
}

// Config describes where the tracking sources sit relative to the robot's
// centre of rotation.  Left and right offsets are positive distances out to
// each side; PerpendicularOffset is positive forward of the centre.
type Config struct {
	LeftOffset          float64 `yaml:"left_offset"`
	RightOffset         float64 `yaml:"right_offset"`
	PerpendicularOffset float64 `yaml:"perpendicular_offset"`

	// HeadingSensorWeight blends the heading sensor against the encoder
	// heading when both are present.  1 trusts the heading sensor alone.
	HeadingSensorWeight float64 `yaml:"heading_sensor_weight"`
}

// Source identifies one tracking input.
type Source int

const (
	SourceLeft Source = iota
	SourceRight
	SourcePerpendicular
	SourceHeading
)

func (s Source) String() string {
	switch s {
	case SourceLeft:
		return "left"
	case SourceRight:
		return "right"
	case SourcePerpendicular:
		return "perpendicular"
	case SourceHeading:
		return "heading"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Missing is the set of sources absent on an update.
type Missing uint8

func (m Missing) Has(s Source) bool {
	return m&(1<<s) != 0
}

func (m Missing) String() string {
	if m == 0 {
		return "none"
	}
	var names []string
	for s := SourceLeft; s <= SourceHeading; s++ {
		if m.Has(s) {
			names = append(names, s.String())
		}
	}
	return strings.Join(names, ",")
}

// minArc is the rotation, in radians, below which the tick is integrated as
// a straight chord.
const minArc = 1e-9

// Estimator integrates per-tick deltas into a Pose.  It is not safe for
// concurrent use; the executor owns it from its control loop.
type Estimator struct {
	cfg     Config
	pose    Pose
	missing Missing
}

func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

func (e *Estimator) Pose() Pose {
	return e.pose
}

// SetPose overwrites the estimate.  It is the only discontinuity allowed.
func (e *Estimator) SetPose(p Pose) {
	e.pose = p
}

// Missing reports the sources absent on the last Update.
func (e *Estimator) Missing() Missing {
	return e.missing
}

// Update integrates one tick of deltas.  Any subset of sources may be absent;
// the estimate degrades rather than fails.
func (e *Estimator) Update(d Deltas) Pose {
	e.missing = 0
	for s, r := range []Reading{d.Left, d.Right, d.Perpendicular, d.Heading} {
		if !r.OK() {
			e.missing |= 1 << Source(s)
		}
	}

	dTheta := e.headingDelta(d)
	forward := e.forwardDelta(d, dTheta)
	var side float64
	if d.Perpendicular.OK() {
		side = d.Perpendicular.Value - e.cfg.PerpendicularOffset*dTheta
	}

	// Arc approximation: the local displacement is the chord of an arc of
	// angle dTheta, laid along the average heading over the tick.
	scale := 1.0
	if math.Abs(dTheta) > minArc {
		scale = 2 * math.Sin(dTheta/2) / dTheta
	}
	mid := angle.Radians(e.pose.Theta) + dTheta/2
	local := r2.Scale(scale, r2.Vec{X: forward, Y: side})
	global := r2.Rotate(local, mid, r2.Vec{})

	e.pose.X += global.X
	e.pose.Y += global.Y
	e.pose.Theta += angle.Degrees(dTheta)
	return e.pose
}

// headingDelta returns the heading change over the tick in radians.
func (e *Estimator) headingDelta(d Deltas) float64 {
	encoder, haveEncoder := e.encoderHeadingDelta(d)
	if !d.Heading.OK() {
		if haveEncoder {
			return encoder
		}
		return 0
	}
	sensor := angle.Radians(d.Heading.Value)
	if !haveEncoder {
		return sensor
	}
	w := e.cfg.HeadingSensorWeight
	return w*sensor + (1-w)*encoder
}

func (e *Estimator) encoderHeadingDelta(d Deltas) (float64, bool) {
	width := e.cfg.LeftOffset + e.cfg.RightOffset
	if !d.Left.OK() || !d.Right.OK() || width <= 0 {
		return 0, false
	}
	return (d.Right.Value - d.Left.Value) / width, true
}

// forwardDelta returns the displacement of the centre along the robot's
// heading, removing the part of each wheel's travel caused by rotation.
func (e *Estimator) forwardDelta(d Deltas, dTheta float64) float64 {
	switch {
	case d.Left.OK() && d.Right.OK():
		l := d.Left.Value + e.cfg.LeftOffset*dTheta
		r := d.Right.Value - e.cfg.RightOffset*dTheta
		return (l + r) / 2
	case d.Left.OK():
		return d.Left.Value + e.cfg.LeftOffset*dTheta
	case d.Right.OK():
		return d.Right.Value - e.cfg.RightOffset*dTheta
	default:
		return 0
	}
}
