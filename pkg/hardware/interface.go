package hardware

import (
	"context"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
)

// Interface is the robot as the chassis daemon sees it: the drivetrain
// plus the odds and ends around it.
type Interface interface {
	chassis.Actuator
	chassis.Sensor

	Start(ctx context.Context) error
	PlaySound(cue string)
	Shutdown()
}
