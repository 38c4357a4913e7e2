package hardware

import (
	"context"
	"log/slog"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/sim"
)

// Dummy stands in for the robot on a bench machine.  The drivetrain is
// simulated; everything else only logs.
type Dummy struct {
	*sim.Plant
	log *slog.Logger
}

func NewDummy(cfg chassis.Config, opts ...sim.Option) *Dummy {
	return &Dummy{
		Plant: sim.New(cfg, opts...),
		log:   log.For("dummy-hardware"),
	}
}

func (d *Dummy) Start(ctx context.Context) error {
	d.log.Info("start")
	return nil
}

func (d *Dummy) PlaySound(cue string) {
	d.log.Info("play sound", "cue", cue)
}

func (d *Dummy) Shutdown() {
	d.log.Info("shutdown")
}

var _ Interface = (*Dummy)(nil)
