package chassis

import "math"

// Defaults for the reference drivetrain: three motors a side on 4.125in
// wheels at 343rpm.
const (
	DefaultWheelDiameterIn float64 = 4.125
	DefaultWheelRPM                = 343
	DefaultTrackWidthIn            = 12

	DefaultTrackerDiameterIn = 2.75
	DefaultTrackerOffsetIn   = 4.0
)

// Drive describes the powered wheels.
type Drive struct {
	WheelDiameter float64 `yaml:"wheel_diameter"`
	WheelRPM      float64 `yaml:"wheel_rpm"`
	// TrackWidth is the distance between the left and right wheel contact
	// patches.
	TrackWidth float64 `yaml:"track_width"`
	// MotorsPerSide is informational; the actuator drives each side as one.
	MotorsPerSide int `yaml:"motors_per_side"`
}

func (d Drive) WheelCircumference() float64 {
	return d.WheelDiameter * math.Pi
}

// TopSpeed is the free-running wheel speed in inches per second.
func (d Drive) TopSpeed() float64 {
	return d.WheelCircumference() * d.WheelRPM / 60
}

// TrackerPosition says where a perpendicular tracker sits.
type TrackerPosition string

const (
	TrackerBack  TrackerPosition = "back"
	TrackerFront TrackerPosition = "front"
)

// Tracker is one unpowered tracking wheel.
type Tracker struct {
	Enabled       bool    `yaml:"enabled"`
	WheelDiameter float64 `yaml:"wheel_diameter"`
	// DistanceToCenter is the unsigned distance from the wheel to the
	// robot's centre of rotation.
	DistanceToCenter float64 `yaml:"distance_to_center"`
	// Position applies to the perpendicular tracker only.
	Position TrackerPosition `yaml:"position,omitempty"`
	// Reversed flips the sign of the reading.
	Reversed bool `yaml:"reversed"`
}

func (t Tracker) Circumference() float64 {
	return t.WheelDiameter * math.Pi
}

type Trackers struct {
	Left          Tracker `yaml:"left"`
	Right         Tracker `yaml:"right"`
	Perpendicular Tracker `yaml:"perpendicular"`

	HeadingSensorWeight float64 `yaml:"heading_sensor_weight"`
}
