// Package executor runs motion primitives against the drivetrain on a fixed
// period control loop.
//
// Callers issue requests from any goroutine; only the loop reads the sensors,
// updates the pose and writes the actuators.  Waiting for a motion never holds
// up the loop.
package executor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
)

var (
	// ErrMotionActive is returned by operations that are only allowed while
	// the chassis is idle.
	ErrMotionActive = errors.New("a motion is in progress")
	// ErrStopped is returned once the control loop has exited.
	ErrStopped = errors.New("control loop stopped")
)

type Executor struct {
	cfg    chassis.Config
	period time.Duration
	act    chassis.Actuator
	sensor chassis.Sensor
	log    *slog.Logger

	onTick *sync.Cond

	controlLock sync.Mutex
	controls
}

type controls struct {
	estimator *odom.Estimator
	differ    *odom.Differ
	missing   odom.Missing

	constants motion.Constants
	settings  motion.Settings

	state         State
	active        *Motion
	last          Outcome
	targetHeading float64

	readings odom.Sample
	manual   [2]float64
	command  [2]float64
	ticks    uint64

	interfered bool
	stopped    bool
}

func New(cfg chassis.Config, act chassis.Actuator, sensor chassis.Sensor) *Executor {
	period := cfg.Period
	if period <= 0 {
		period = chassis.DefaultPeriod
	}
	e := &Executor{
		cfg:    cfg,
		period: period,
		act:    act,
		sensor: sensor,
		log:    log.For("executor"),
	}
	e.onTick = sync.NewCond(&e.controlLock)
	e.estimator = odom.NewEstimator(cfg.Odometry())
	e.differ = odom.NewDiffer()
	e.constants = cfg.Constants
	e.settings = cfg.Motion
	return e
}

// Period is the control loop period.
func (e *Executor) Period() time.Duration {
	return e.period
}

// Issue validates r and makes it the active motion, pre-empting whatever was
// running.  An invalid request leaves the current motion untouched.
func (e *Executor) Issue(r motion.Request) (*Motion, error) {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()

	if e.stopped {
		return nil, ErrStopped
	}
	prim, err := motion.Start(r, motion.Env{
		Start:     e.estimator.Pose(),
		Heading:   e.targetHeading,
		Constants: e.constants,
		Settings:  e.settings,
	})
	if err != nil {
		e.log.Warn("rejected motion request", "request", r, "error", err)
		return nil, err
	}

	if prev := e.active; prev != nil {
		e.finish(prev, Preempted, motion.ExitNone)
	}
	m := newMotion(r, prim)
	e.active = m
	e.state = Running
	e.manual = [2]float64{}
	e.interfered = false
	e.log.Info("motion started", "motion", m.ID, "request", r, "pose", e.estimator.Pose())
	return m, nil
}

// finish resolves m.  Must be called with the control lock held.
func (e *Executor) finish(m *Motion, kind Kind, exit motion.Exit) {
	if m.finished() {
		return
	}
	m.state = Done
	if kind != Completed {
		m.state = Interrupted
	}
	m.outcome = Outcome{
		MotionID: m.ID,
		Kind:     kind,
		Exit:     exit,
		Elapsed:  time.Duration(m.ticks) * e.period,
		Pose:     e.estimator.Pose(),
	}
	close(m.done)

	if kind != Aborted {
		e.targetHeading = m.prim.TargetHeading()
	} else {
		e.targetHeading = e.estimator.Pose().Theta
	}
	if exit == motion.ExitBlocked {
		e.interfered = true
	}
	if e.active == m {
		e.active = nil
		e.state = m.state
		e.command = [2]float64{}
	}
	e.last = m.outcome
	e.onTick.Broadcast()

	if kind == Completed && exit == motion.ExitTimedOut {
		e.log.Warn("motion timed out", "motion", m.ID, "outcome", m.outcome)
	} else {
		e.log.Info("motion finished", "motion", m.ID, "outcome", m.outcome)
	}
}

// Abort interrupts the active motion and cancels any manual drive.  The
// actuators are zeroed on the next tick.
func (e *Executor) Abort() {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()

	e.manual = [2]float64{}
	if m := e.active; m != nil {
		e.finish(m, Aborted, motion.ExitNone)
	}
}

// WaitForCompletion blocks until the active motion ends and returns its
// outcome.  With no active motion it returns the last outcome immediately.
func (e *Executor) WaitForCompletion(ctx context.Context) (Outcome, error) {
	e.controlLock.Lock()
	m := e.active
	last := e.last
	e.controlLock.Unlock()

	if m == nil {
		return last, nil
	}
	return m.Wait(ctx)
}

// WaitUntil blocks until the active motion has covered progress (inches for
// drives, degrees for turns) or has ended.
func (e *Executor) WaitUntil(ctx context.Context, progress float64) error {
	e.controlLock.Lock()
	m := e.active
	e.controlLock.Unlock()
	if m == nil {
		return nil
	}
	return e.waitFor(ctx, func() bool {
		return m.finished() || math.Abs(m.prim.Progress()) >= math.Abs(progress)
	})
}

// WaitTicks blocks for n control ticks.
func (e *Executor) WaitTicks(ctx context.Context, n int) error {
	e.controlLock.Lock()
	target := e.ticks + uint64(max(n, 0))
	e.controlLock.Unlock()
	return e.waitFor(ctx, func() bool {
		return e.ticks >= target
	})
}

// Delay blocks for at least d, rounded up to whole ticks.
func (e *Executor) Delay(ctx context.Context, d time.Duration) error {
	n := int((d + e.period - 1) / e.period)
	return e.WaitTicks(ctx, n)
}

// waitFor blocks until done returns true after a tick.  done is called with
// the control lock held.
func (e *Executor) waitFor(ctx context.Context, done func() bool) error {
	stop := context.AfterFunc(ctx, func() {
		e.controlLock.Lock()
		defer e.controlLock.Unlock()
		e.onTick.Broadcast()
	})
	defer stop()

	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	for !done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.stopped {
			return ErrStopped
		}
		e.onTick.Wait()
	}
	return nil
}

func (e *Executor) IsSettled() bool {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	return e.active == nil
}

func (e *Executor) State() State {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	return e.state
}

// Interfered reports whether the last motion ended because the robot was
// blocked.
func (e *Executor) Interfered() bool {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	return e.interfered
}

// SetMaxSpeed changes the speed cap of the active motion.
func (e *Executor) SetMaxSpeed(speed float64) error {
	if math.IsNaN(speed) || speed <= 0 || speed > motion.MaxSpeed {
		return errors.Wrapf(motion.ErrInvalidRequest, "speed %v outside (0, %d]", speed, motion.MaxSpeed)
	}
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	if e.active != nil {
		e.active.prim.SetMaxSpeed(speed)
	}
	return nil
}

// Drive sets a manual command for each side.  It only takes effect while no
// motion is active, and is cleared when one is issued.
func (e *Executor) Drive(left, right float64) {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	e.manual = [2]float64{clamp(left), clamp(right)}
}

func (e *Executor) Constants() motion.Constants {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	return e.constants
}

// SetConstants replaces the live constants.  It is refused while a motion is
// running, since that motion keeps the snapshot it started with.
func (e *Executor) SetConstants(c motion.Constants) error {
	if err := chassis.ValidateConstants(c); err != nil {
		return err
	}
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	if e.active != nil {
		return ErrMotionActive
	}
	e.constants = c
	e.log.Info("constants updated", "drive", c.Drive, "turn", c.Turn, "swing", c.Swing)
	return nil
}

func (e *Executor) Settings() motion.Settings {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	return e.settings
}

func (e *Executor) Pose() odom.Pose {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	return e.estimator.Pose()
}

// SetPose overwrites the pose estimate.  Later drives hold the new heading.
func (e *Executor) SetPose(p odom.Pose) {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()
	e.estimator.SetPose(p)
	e.targetHeading = p.Theta
	e.log.Info("pose set", "pose", p)
}

// TrackerReadings returns the raw accumulated distance of each tracking
// source with the offset it is mounted at.
func (e *Executor) TrackerReadings() []chassis.TrackerReading {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()

	geom := e.cfg.Odometry()
	perp := "b"
	if e.cfg.Trackers.Perpendicular.Position == chassis.TrackerFront {
		perp = "f"
	}
	reading := func(name string, r odom.Reading, width float64) chassis.TrackerReading {
		return chassis.TrackerReading{Name: name, Value: r.Value, Width: width, Present: r.OK()}
	}
	return []chassis.TrackerReading{
		reading("l", e.readings.Left, geom.LeftOffset),
		reading("r", e.readings.Right, geom.RightOffset),
		reading(perp, e.readings.Perpendicular, math.Abs(geom.PerpendicularOffset)),
	}
}

// Snapshot is a consistent view of the executor for telemetry.
type Snapshot struct {
	State         State     `json:"state"`
	Pose          odom.Pose `json:"pose"`
	TargetHeading float64   `json:"target_heading"`
	Motion        string    `json:"motion,omitempty"`
	MotionID      string    `json:"motion_id,omitempty"`
	Progress      float64   `json:"progress"`
	Left          float64   `json:"left"`
	Right         float64   `json:"right"`
	Ticks         uint64    `json:"ticks"`
	Interfered    bool      `json:"interfered"`
	Missing       string    `json:"missing,omitempty"`
	Last          *Outcome  `json:"last,omitempty"`
}

func (e *Executor) Snapshot() Snapshot {
	e.controlLock.Lock()
	defer e.controlLock.Unlock()

	s := Snapshot{
		State:         e.state,
		Pose:          e.estimator.Pose(),
		TargetHeading: e.targetHeading,
		Left:          e.command[chassis.Left],
		Right:         e.command[chassis.Right],
		Ticks:         e.ticks,
		Interfered:    e.interfered,
	}
	if m := e.missing; m != 0 {
		s.Missing = m.String()
	}
	if m := e.active; m != nil {
		s.Motion = m.Request.String()
		s.MotionID = m.ID.String()
		s.Progress = m.prim.Progress()
	}
	if e.last.MotionID != uuid.Nil {
		last := e.last
		s.Last = &last
	}
	return s
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-motion.MaxSpeed, math.Min(motion.MaxSpeed, v))
}
