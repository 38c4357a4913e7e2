// Package sim is a simulated tank drivetrain.  It stands in for the motors
// and tracking sensors so the motion engine can run without hardware.
package sim

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/angle"
	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
)

// DefaultLag is the wheel speed time constant.
const DefaultLag = 50 * time.Millisecond

// Plant simulates the robot.  Each call to Sample advances the world by one
// step, so driving it from the executor's loop keeps simulated time in lock
// step with control ticks.
type Plant struct {
	cfg  chassis.Config
	geom odom.Config
	step time.Duration
	lag  time.Duration

	lock sync.Mutex

	command [2]float64
	speed   [2]float64

	pose   odom.Pose
	left   float64
	right  float64
	perp   float64
	imu    float64
	path   []odom.Pose
	frozen bool

	// Disabled sources report odom.ErrSensorUnavailable.
	disabled  map[odom.Source]bool
	obstacle  func(odom.Pose) bool
	maxRecord int
}

type Option func(*Plant)

// WithLag sets the wheel speed time constant.
func WithLag(lag time.Duration) Option {
	return func(p *Plant) {
		p.lag = lag
	}
}

// WithoutSource removes a tracking source.
func WithoutSource(s odom.Source) Option {
	return func(p *Plant) {
		p.disabled[s] = true
	}
}

// WithObstacle stops the robot dead whenever a step would end in a pose for
// which blocked returns true.
func WithObstacle(blocked func(odom.Pose) bool) Option {
	return func(p *Plant) {
		p.obstacle = blocked
	}
}

func New(cfg chassis.Config, opts ...Option) *Plant {
	p := &Plant{
		cfg:       cfg,
		geom:      cfg.Odometry(),
		step:      cfg.Period,
		lag:       DefaultLag,
		disabled:  map[odom.Source]bool{},
		maxRecord: 100000,
	}
	if !cfg.Trackers.Perpendicular.Enabled {
		p.disabled[odom.SourcePerpendicular] = true
	}
	for _, o := range opts {
		o(p)
	}
	p.path = append(p.path, p.pose)
	return p
}

var _ chassis.Actuator = (*Plant)(nil)
var _ chassis.Sensor = (*Plant)(nil)

func (p *Plant) SetVelocity(side chassis.Side, value float64) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.command[side] = math.Max(-motion.MaxSpeed, math.Min(motion.MaxSpeed, value))
	return nil
}

// Sample advances the simulation by one step and reads every source.
func (p *Plant) Sample() odom.Sample {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.advance()
	return odom.Sample{
		Left:          p.reading(odom.SourceLeft, p.left),
		Right:         p.reading(odom.SourceRight, p.right),
		Perpendicular: p.reading(odom.SourcePerpendicular, p.perp),
		Heading:       p.reading(odom.SourceHeading, p.imu),
	}
}

func (p *Plant) reading(s odom.Source, v float64) odom.Reading {
	if p.disabled[s] {
		return odom.Absent()
	}
	return odom.Present(v)
}

func (p *Plant) advance() {
	dt := p.step.Seconds()
	alpha := 1.0
	if p.lag > 0 {
		alpha = math.Min(1, dt/p.lag.Seconds())
	}
	top := p.cfg.Drive.TopSpeed()
	for i := range p.speed {
		target := p.command[i] / motion.MaxSpeed * top
		p.speed[i] += (target - p.speed[i]) * alpha
	}

	dl := p.speed[chassis.Left] * dt
	dr := p.speed[chassis.Right] * dt
	width := p.cfg.Drive.TrackWidth
	dTheta := (dr - dl) / width
	forward := (dl + dr) / 2

	scale := 1.0
	if math.Abs(dTheta) > 1e-12 {
		scale = 2 * math.Sin(dTheta/2) / dTheta
	}
	mid := angle.Radians(p.pose.Theta) + dTheta/2
	move := r2.Rotate(r2.Vec{X: forward * scale}, mid, r2.Vec{})
	next := odom.Pose{
		X:     p.pose.X + move.X,
		Y:     p.pose.Y + move.Y,
		Theta: p.pose.Theta + angle.Degrees(dTheta),
	}

	p.frozen = p.obstacle != nil && p.obstacle(next)
	if p.frozen {
		p.speed = [2]float64{}
		return
	}

	p.pose = next
	p.left += forward - p.geom.LeftOffset*dTheta
	p.right += forward + p.geom.RightOffset*dTheta
	p.perp += p.geom.PerpendicularOffset * dTheta
	p.imu += angle.Degrees(dTheta)
	if len(p.path) < p.maxRecord {
		p.path = append(p.path, p.pose)
	}
}

// Pose is the true pose of the simulated robot.
func (p *Plant) Pose() odom.Pose {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.pose
}

// SetPose teleports the robot without touching the sensor readings.
func (p *Plant) SetPose(pose odom.Pose) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pose = pose
	p.path = append(p.path, pose)
}

// Speed returns the current left and right wheel speeds in inches per second.
func (p *Plant) Speed() (left, right float64) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.speed[chassis.Left], p.speed[chassis.Right]
}

func (p *Plant) Command() (left, right float64) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.command[chassis.Left], p.command[chassis.Right]
}

// Blocked reports whether the last step hit the obstacle.
func (p *Plant) Blocked() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.frozen
}

// Path returns every pose the robot has passed through.
func (p *Plant) Path() []odom.Pose {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]odom.Pose(nil), p.path...)
}
