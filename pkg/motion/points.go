package motion

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/angle"
	"github.com/jemminiz/EZ-Template/pkg/interference"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

type pointsPhase int

const (
	phaseFollowing pointsPhase = iota
	phaseFacing
)

// points follows an OdomPointSequence.  Each tick it re-aims at the current
// waypoint from the latest pose; through-points are handed over without
// settling and only the final point settles.
type points struct {
	waypoints []Waypoint
	index     int
	phase     pointsPhase
	settings  Settings
	constants Constants
	override  float64

	drive   *pid.Controller
	angular *pid.Controller
	facing  *pid.Controller
	slew    slew
	monitor *interference.Monitor

	locked        bool
	lockedHeading float64
	heading       float64
	faceTarget    float64
	// near is how long the robot has been within the settle error of the
	// final point.
	near time.Duration

	travelled float64
}

func (r OdomPointSequence) start(env Env) Primitive {
	first := r.Points[0].MaxSpeed
	return &points{
		waypoints: append([]Waypoint(nil), r.Points...),
		settings:  env.Settings,
		constants: env.Constants,
		drive:     controller(env.Constants.OdomDrive, r.Exit, first),
		angular:   controller(env.Constants.OdomAngular, nil, first),
		slew:      newSlew(r.Slew, env.Settings.SlewRate),
		monitor:   newMonitor(env.Settings),
		heading:   env.Start.Theta,
	}
}

func (p *points) current() Waypoint {
	return p.waypoints[p.index]
}

func (p *points) final() bool {
	return p.index == len(p.waypoints)-1
}

func (p *points) speed() float64 {
	s := p.current().MaxSpeed
	if p.override > 0 {
		s = math.Min(s, p.override)
	}
	return s
}

func (p *points) Step(t Tick) Output {
	p.travelled += r2.Norm(r2.Sub(t.Pose.Position(), t.Previous.Position()))

	var out Output
	if p.phase == phaseFacing {
		out = p.stepFacing(t)
	} else {
		out = p.stepFollowing(t)
	}

	observed := t.seesTravel() && t.seesRotation()
	if out.Exit == ExitNone && watch(p.monitor, observed, math.Max(math.Abs(out.Left), math.Abs(out.Right)), t.speed(), t.angular(), t.DT) {
		out.Exit = ExitBlocked
	}
	return out
}

func (p *points) stepFollowing(t Tick) Output {
	pos := t.Pose.Position()
	wp := p.current()
	toTarget := r2.Sub(wp.Position, pos)
	dist := r2.Norm(toTarget)

	if !p.final() && dist < p.settings.ThroughRadius {
		p.index++
		p.drive.Retarget()
		p.angular.Retarget()
		wp = p.current()
		toTarget = r2.Sub(wp.Position, pos)
		dist = r2.Norm(toTarget)
	}

	reverse := wp.Direction == Reverse
	bearing := odom.HeadingTo(pos, wp.Position)
	facing := t.Pose.Direction()
	if reverse {
		bearing += 180
		facing = r2.Scale(-1, facing)
	}

	along := r2.Dot(toTarget, facing)
	if p.final() && !p.locked && dist < p.settings.HeadingLockRadius && p.lockable(dist, along, r2.Cross(facing, toTarget)) {
		p.locked = true
		p.lockedHeading = t.Pose.Theta + angle.Diff(bearing, t.Pose.Theta)
	}
	if p.locked {
		p.heading = p.lockedHeading
	} else {
		p.heading = t.Pose.Theta + angle.Diff(bearing, t.Pose.Theta)
		// Turn towards the point before driving at it.
		along = math.Max(along, 0)
	}

	speed := p.speed()
	p.drive.MaxOutput = speed
	p.angular.MaxOutput = speed

	forward := p.slew.limit(p.drive.ComputeError(along, t.DT), t.DT)
	if reverse {
		forward = -forward
	}
	turn := p.angular.ComputeError(p.heading-t.Pose.Theta, t.DT)
	left, right := mix(forward, turn, speed)

	// The final point settles on the distance to it, not on the error along
	// the heading.
	inBand := p.locked && dist < p.drive.SettleError
	if inBand {
		p.near += t.DT
	} else {
		p.near = 0
	}
	out := Output{
		Left:   left,
		Right:  right,
		InBand: inBand,
		Error:  dist,
	}

	settled := inBand && p.near >= p.drive.SettleTime
	timedOut := p.drive.Timeout > 0 && p.drive.Elapsed() >= p.drive.Timeout
	switch {
	case settled && !wp.HasHeading:
		out.Exit = ExitSettled
	case settled:
		p.phase = phaseFacing
		p.faceTarget = t.Pose.Theta + angle.Diff(wp.Heading, t.Pose.Theta)
		p.heading = p.faceTarget
		p.facing = controller(p.constants.OdomAngular, nil, speed)
		p.monitor.Reset()
		out.InBand = false
	case timedOut:
		out.Exit = ExitTimedOut
	}
	return out
}

// lockable reports whether the heading may be frozen for the run in to the
// final point: the point must lie ahead of the robot and close to its line
// of travel, or already be within the settle error.
func (p *points) lockable(dist, along, lateral float64) bool {
	if dist < p.drive.SettleError {
		return true
	}
	return along > 0 && math.Abs(lateral) < p.drive.SettleError/2
}

func (p *points) stepFacing(t Tick) Output {
	p.facing.MaxOutput = p.speed()
	err := p.faceTarget - t.Pose.Theta
	out := p.facing.ComputeError(err, t.DT)
	return Output{
		Left:   -out,
		Right:  out,
		InBand: p.facing.InBand(),
		Exit:   exitFor(p.facing, false),
		Error:  err,
	}
}

func (p *points) Progress() float64 {
	return p.travelled
}

func (p *points) SetMaxSpeed(speed float64) {
	p.override = speed
}

func (p *points) TargetHeading() float64 {
	return p.heading
}
