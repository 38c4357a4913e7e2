package motion

import (
	"math"

	"github.com/jemminiz/EZ-Template/pkg/angle"
	"github.com/jemminiz/EZ-Template/pkg/interference"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

// turn drives both sides with equal and opposite output, or only one side
// for a swing.
type turn struct {
	startTheta float64
	target     float64
	speed      float64
	chain      float64

	swing    bool
	side     SwingSide
	opposite float64

	ctrl    *pid.Controller
	monitor *interference.Monitor

	progress float64
}

func turnTarget(env Env, a float64, relative, shortest bool) float64 {
	target := a
	if relative {
		target = env.Start.Theta + a
	}
	if shortest {
		target = env.Start.Theta + angle.Diff(target, env.Start.Theta)
	}
	return target
}

func (r TurnToAngle) start(env Env) Primitive {
	t := &turn{
		startTheta: env.Start.Theta,
		target:     turnTarget(env, r.Angle, r.Relative, r.Shortest),
		speed:      r.Speed,
		ctrl:       controller(env.Constants.Turn, r.Exit, r.Speed),
		monitor:    newMonitor(env.Settings),
	}
	if r.Chain {
		t.chain = env.Settings.ChainTurn
	}
	return t
}

func (r SwingTurn) start(env Env) Primitive {
	t := &turn{
		startTheta: env.Start.Theta,
		target:     turnTarget(env, r.Angle, r.Relative, false),
		speed:      r.Speed,
		swing:      true,
		side:       r.Side,
		opposite:   r.OppositeSpeed,
		ctrl:       controller(env.Constants.Swing, r.Exit, r.Speed),
		monitor:    newMonitor(env.Settings),
	}
	if r.Chain {
		t.chain = env.Settings.ChainTurn
	}
	return t
}

func (t *turn) Step(tick Tick) Output {
	err := t.target - tick.Pose.Theta
	out := t.ctrl.ComputeError(err, tick.DT)

	var left, right float64
	switch {
	case !t.swing:
		left, right = -out, out
	case t.side == SwingLeft:
		left = -out
		right = left * t.opposite / t.speed
	default:
		right = out
		left = right * t.opposite / t.speed
	}

	blocked := watch(t.monitor, tick.seesRotation(), out, tick.linear(tick.Pose.Direction()), tick.angular(), tick.DT)
	t.progress = math.Abs(tick.Pose.Theta - t.startTheta)

	o := Output{
		Left:   left,
		Right:  right,
		InBand: t.ctrl.InBand(),
		Error:  err,
	}
	if t.chain > 0 && math.Abs(err) < t.chain {
		o.Exit = ExitChained
	} else {
		o.Exit = exitFor(t.ctrl, blocked)
	}
	return o
}

func (t *turn) Progress() float64 {
	return t.progress
}

func (t *turn) SetMaxSpeed(speed float64) {
	t.speed = speed
	t.ctrl.MaxOutput = speed
	t.opposite = math.Min(t.opposite, speed)
}

func (t *turn) TargetHeading() float64 {
	return t.target
}
