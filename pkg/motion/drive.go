package motion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/interference"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

type drive struct {
	start   r2.Vec
	target  r2.Vec
	dir     r2.Vec
	heading float64
	speed   float64
	chain   float64

	forward *pid.Controller
	hold    *pid.Controller
	slew    slew
	monitor *interference.Monitor

	progress float64
}

func (r DriveDistance) start(env Env) Primitive {
	dir := odom.Unit(env.Heading)
	d := &drive{
		start:   env.Start.Position(),
		dir:     dir,
		heading: env.Heading,
		speed:   r.Speed,
		forward: controller(env.Constants.Drive, r.Exit, r.Speed),
		hold:    controller(env.Constants.Heading, nil, r.Speed),
		slew:    newSlew(r.Slew, env.Settings.SlewRate),
		monitor: newMonitor(env.Settings),
	}
	d.target = r2.Add(d.start, r2.Scale(r.Distance, dir))
	if r.Chain {
		d.chain = env.Settings.ChainDrive
	}
	return d
}

func (d *drive) Step(t Tick) Output {
	pos := t.Pose.Position()

	// Error is measured along the drive line, ignoring sideways drift.
	err := r2.Dot(r2.Sub(d.target, pos), d.dir)
	forward := d.slew.limit(d.forward.ComputeError(err, t.DT), t.DT)
	turn := d.hold.ComputeError(d.heading-t.Pose.Theta, t.DT)
	left, right := mix(forward, turn, d.speed)

	blocked := watch(d.monitor, t.seesTravel(), forward, t.linear(d.dir), t.angular(), t.DT)
	d.progress = math.Abs(r2.Dot(r2.Sub(pos, d.start), d.dir))

	out := Output{
		Left:   left,
		Right:  right,
		InBand: d.forward.InBand(),
		Error:  err,
	}
	if d.chain > 0 && math.Abs(err) < d.chain {
		out.Exit = ExitChained
	} else {
		out.Exit = exitFor(d.forward, blocked)
	}
	return out
}

func (d *drive) Progress() float64 {
	return d.progress
}

func (d *drive) SetMaxSpeed(speed float64) {
	d.speed = speed
	d.forward.MaxOutput = speed
	d.hold.MaxOutput = speed
}

func (d *drive) TargetHeading() float64 {
	return d.heading
}
