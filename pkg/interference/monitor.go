// Package interference detects a robot that is being driven but is not
// moving, such as one pushed against a wall or held by another robot.
package interference

import (
	"math"
	"time"
)

type Config struct {
	// Window is how long the robot must be stalled before it is flagged.
	// Zero disables detection.
	Window time.Duration `yaml:"window"`
	// MinOutput is the command magnitude, in actuator units, that counts as
	// trying to move.
	MinOutput float64 `yaml:"min_output"`
	// StillLinear (in/s) and StillAngular (deg/s) are the speeds below which
	// the robot counts as stationary.
	StillLinear  float64 `yaml:"still_linear"`
	StillAngular float64 `yaml:"still_angular"`
}

// Monitor watches commanded output against observed motion for one motion.
type Monitor struct {
	cfg Config

	stalled time.Duration
	blocked bool
}

func New(cfg Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// Update records one tick and reports whether the robot is now blocked.
// Once blocked, the monitor stays blocked until Reset.
func (m *Monitor) Update(expected, linear, angular float64, dt time.Duration) bool {
	if m.blocked || m.cfg.Window <= 0 {
		return m.blocked
	}
	trying := math.Abs(expected) >= m.cfg.MinOutput
	still := math.Abs(linear) < m.cfg.StillLinear && math.Abs(angular) < m.cfg.StillAngular
	if trying && still {
		m.stalled += dt
	} else {
		m.stalled = 0
	}
	if m.stalled >= m.cfg.Window {
		m.blocked = true
	}
	return m.blocked
}

func (m *Monitor) Blocked() bool {
	return m.blocked
}

// Stalled returns how long the current stall has lasted.
func (m *Monitor) Stalled() time.Duration {
	return m.stalled
}

func (m *Monitor) Reset() {
	m.stalled = 0
	m.blocked = false
}
