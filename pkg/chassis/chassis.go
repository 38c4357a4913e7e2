// Package chassis describes the physical drivetrain and the contracts the
// motion engine uses to reach its actuators and sensors.
package chassis

import (
	"fmt"

	"github.com/jemminiz/EZ-Template/pkg/odom"
)

// Side selects one half of a tank drivetrain.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Actuator accepts one command per side per tick, in [-127, 127].  The last
// write in a tick wins.
type Actuator interface {
	SetVelocity(side Side, value float64) error
}

// Sensor returns the latest reading from every tracking source.  Sources that
// are not fitted or not ready report odom.ErrSensorUnavailable.
type Sensor interface {
	Sample() odom.Sample
}

// TrackerReading is one tracking source as shown on the tuning overlay.
type TrackerReading struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Width   float64 `json:"width"`
	Present bool    `json:"present"`
}
