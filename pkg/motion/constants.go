package motion

import (
	"time"

	"github.com/jemminiz/EZ-Template/pkg/interference"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

// MaxSpeed is the largest command magnitude an actuator accepts.
const MaxSpeed = 127

// Constants is the full set of PID tunings, one per controller role.  The
// executor owns the live copy; each motion takes a snapshot when it starts.
type Constants struct {
	Drive       pid.Constants `yaml:"drive" json:"drive"`
	Heading     pid.Constants `yaml:"heading" json:"heading"`
	Turn        pid.Constants `yaml:"turn" json:"turn"`
	Swing       pid.Constants `yaml:"swing" json:"swing"`
	OdomDrive   pid.Constants `yaml:"odom_drive" json:"odom_drive"`
	OdomAngular pid.Constants `yaml:"odom_angular" json:"odom_angular"`
}

// Settings are the non-PID knobs shared by all primitives.
type Settings struct {
	// ThroughRadius is how close the robot must pass to an intermediate
	// waypoint before moving on to the next one.
	ThroughRadius float64 `yaml:"through_radius"`
	// HeadingLockRadius is the distance from the final waypoint inside which
	// the robot stops re-aiming at it.
	HeadingLockRadius float64 `yaml:"heading_lock_radius"`
	// ChainDrive and ChainTurn are the errors at which a chained motion hands
	// over to the next one.
	ChainDrive float64 `yaml:"chain_drive"`
	ChainTurn  float64 `yaml:"chain_turn"`
	// SlewRate limits how fast the forward output may grow, in actuator
	// units per second.
	SlewRate float64 `yaml:"slew_rate"`

	Interference interference.Config `yaml:"interference"`
}

func DefaultConstants() Constants {
	driveExit := pid.ExitConditions{
		SettleError: 1,
		SettleTime:  90 * time.Millisecond,
		Timeout:     5 * time.Second,
	}
	turnExit := pid.ExitConditions{
		SettleError: 3,
		SettleTime:  90 * time.Millisecond,
		Timeout:     3 * time.Second,
	}
	return Constants{
		Drive:       pid.Constants{KP: 20, KD: 1, ExitConditions: driveExit},
		Heading:     pid.Constants{KP: 11, KD: 0.2},
		Turn:        pid.Constants{KP: 3, KI: 5, KD: 0.2, StartI: 15, ExitConditions: turnExit},
		Swing:       pid.Constants{KP: 6, KD: 0.65, ExitConditions: turnExit},
		OdomDrive:   pid.Constants{KP: 20, KD: 1, ExitConditions: driveExit},
		OdomAngular: pid.Constants{KP: 6.5, KD: 0.525, ExitConditions: turnExit},
	}
}

func DefaultSettings() Settings {
	return Settings{
		ThroughRadius:     3,
		HeadingLockRadius: 4,
		ChainDrive:        3,
		ChainTurn:         3,
		SlewRate:          500,
		Interference: interference.Config{
			Window:       500 * time.Millisecond,
			MinOutput:    15,
			StillLinear:  0.5,
			StillAngular: 3,
		},
	}
}
