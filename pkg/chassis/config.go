package chassis

import (
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

const (
	DefaultConfigFile = "/cfg/chassis.yaml"
	DefaultPeriod     = 10 * time.Millisecond
)

// Devices names the hardware the robot program opens.
type Devices struct {
	I2CBus    string `yaml:"i2c_bus"`
	IMUSerial string `yaml:"imu_serial"`
	Screen    string `yaml:"screen"`
	Joystick  string `yaml:"joystick"`
	SoundsDir string `yaml:"sounds_dir"`

	// Tracker encoder pins, by periph GPIO name, and counts per revolution.
	LeftTrackerPins          [2]string `yaml:"left_tracker_pins"`
	RightTrackerPins         [2]string `yaml:"right_tracker_pins"`
	PerpendicularTrackerPins [2]string `yaml:"perpendicular_tracker_pins"`
	TrackerCountsPerRev      float64   `yaml:"tracker_counts_per_rev"`
}

type Config struct {
	Drive     Drive            `yaml:"drive"`
	Trackers  Trackers         `yaml:"trackers"`
	Period    time.Duration    `yaml:"period"`
	Constants motion.Constants `yaml:"constants"`
	Motion    motion.Settings  `yaml:"motion"`
	Devices   Devices          `yaml:"devices"`
}

func DefaultConfig() Config {
	tracker := Tracker{
		WheelDiameter:    DefaultTrackerDiameterIn,
		DistanceToCenter: DefaultTrackerOffsetIn,
	}
	perp := tracker
	perp.Position = TrackerBack
	return Config{
		Drive: Drive{
			WheelDiameter: DefaultWheelDiameterIn,
			WheelRPM:      DefaultWheelRPM,
			TrackWidth:    DefaultTrackWidthIn,
			MotorsPerSide: 3,
		},
		Trackers: Trackers{
			Left:                tracker,
			Right:               tracker,
			Perpendicular:       perp,
			HeadingSensorWeight: 1,
		},
		Period:    DefaultPeriod,
		Constants: motion.DefaultConstants(),
		Motion:    motion.DefaultSettings(),
		Devices: Devices{
			I2CBus:                   "/dev/i2c-1",
			IMUSerial:                "/dev/ttyAMA0",
			Screen:                   "/dev/fb1",
			Joystick:                 "/dev/input/js0",
			SoundsDir:                "/sounds",
			LeftTrackerPins:          [2]string{"GPIO5", "GPIO6"},
			RightTrackerPins:         [2]string{"GPIO13", "GPIO19"},
			PerpendicularTrackerPins: [2]string{"GPIO20", "GPIO21"},
			TrackerCountsPerRev:      720,
		},
	}
}

// LoadConfig reads a YAML file over the defaults.  A missing file is not an
// error; the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// WriteConfig records the configuration actually in use.
func WriteConfig(path string, cfg Config) error {
	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0666), "writing config %s", path)
}

func (c Config) Validate() error {
	switch {
	case c.Period <= 0:
		return errors.Errorf("period must be positive, got %v", c.Period)
	case c.Drive.WheelDiameter <= 0:
		return errors.Errorf("drive wheel diameter must be positive, got %v", c.Drive.WheelDiameter)
	case c.Drive.TrackWidth <= 0:
		return errors.Errorf("track width must be positive, got %v", c.Drive.TrackWidth)
	case c.Trackers.HeadingSensorWeight < 0 || c.Trackers.HeadingSensorWeight > 1:
		return errors.Errorf("heading sensor weight must be within [0, 1], got %v", c.Trackers.HeadingSensorWeight)
	case c.Motion.ThroughRadius <= 0:
		return errors.Errorf("through radius must be positive, got %v", c.Motion.ThroughRadius)
	case c.Motion.Interference.Window < 0:
		return errors.Errorf("interference window must not be negative, got %v", c.Motion.Interference.Window)
	}
	for name, t := range map[string]Tracker{
		"left":          c.Trackers.Left,
		"right":         c.Trackers.Right,
		"perpendicular": c.Trackers.Perpendicular,
	} {
		if t.Enabled && t.WheelDiameter <= 0 {
			return errors.Errorf("%s tracker wheel diameter must be positive, got %v", name, t.WheelDiameter)
		}
	}
	if p := c.Trackers.Perpendicular; p.Enabled && p.Position != TrackerBack && p.Position != TrackerFront {
		return errors.Errorf("perpendicular tracker position must be %q or %q, got %q", TrackerBack, TrackerFront, p.Position)
	}
	return ValidateConstants(c.Constants)
}

// ValidateConstants checks a full set of PID constants.
func ValidateConstants(c motion.Constants) error {
	for name, k := range map[string]pid.Constants{
		"drive":        c.Drive,
		"heading":      c.Heading,
		"turn":         c.Turn,
		"swing":        c.Swing,
		"odom_drive":   c.OdomDrive,
		"odom_angular": c.OdomAngular,
	} {
		if k.KP < 0 || k.KI < 0 || k.KD < 0 || k.StartI < 0 {
			return errors.Errorf("%s constants must not be negative: %v", name, k)
		}
		if k.SettleError < 0 || k.SettleTime < 0 || k.Timeout < 0 {
			return errors.Errorf("%s exit conditions must not be negative", name)
		}
	}
	return nil
}

// Odometry returns the estimator geometry.  Without a tracking wheel on a
// side, that side's drive encoders are used at half the track width.
func (c Config) Odometry() odom.Config {
	out := odom.Config{
		LeftOffset:          c.Drive.TrackWidth / 2,
		RightOffset:         c.Drive.TrackWidth / 2,
		HeadingSensorWeight: c.Trackers.HeadingSensorWeight,
	}
	if c.Trackers.Left.Enabled {
		out.LeftOffset = c.Trackers.Left.DistanceToCenter
	}
	if c.Trackers.Right.Enabled {
		out.RightOffset = c.Trackers.Right.DistanceToCenter
	}
	if p := c.Trackers.Perpendicular; p.Enabled {
		out.PerpendicularOffset = p.DistanceToCenter
		if p.Position == TrackerBack {
			out.PerpendicularOffset = -p.DistanceToCenter
		}
	}
	return out
}
