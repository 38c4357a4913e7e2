package executor

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/sim"
)

func newSim(t *testing.T, cfg chassis.Config, opts ...sim.Option) (*Executor, *sim.Plant) {
	t.Helper()
	p := sim.New(cfg, opts...)
	e := New(cfg, p, p)
	e.Step()
	return e, p
}

// run steps the executor until m has an outcome.
func run(t *testing.T, e *Executor, m *Motion, maxTicks int) Outcome {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		if o, ok := m.Outcome(); ok {
			return o
		}
		e.Step()
	}
	o, ok := m.Outcome()
	require.True(t, ok, "motion %v did not finish within %d ticks", m.Request, maxTicks)
	return o
}

func TestDriveStraight(t *testing.T) {
	e, p := newSim(t, chassis.DefaultConfig())
	e.SetPose(odom.Pose{})

	m, err := e.Issue(motion.DriveDistance{Distance: 24, Speed: 110})
	require.NoError(t, err)
	assert.Equal(t, Running, e.State())

	o := run(t, e, m, 1000)
	assert.Equal(t, Completed, o.Kind)
	assert.Equal(t, motion.ExitSettled, o.Exit)
	assert.Less(t, o.Elapsed, 5*time.Second)
	assert.Equal(t, Done, e.State())
	assert.True(t, e.IsSettled())

	assert.InDelta(t, 24, e.Pose().X, 1)
	assert.InDelta(t, 0, e.Pose().Y, 0.5)
	assert.InDelta(t, 24, p.Pose().X, 1)

	e.Step()
	l, r := p.Command()
	assert.Zero(t, l)
	assert.Zero(t, r)
}

func TestPointSequencePassesThroughPoint(t *testing.T) {
	e, p := newSim(t, chassis.DefaultConfig())
	e.SetPose(odom.Pose{})

	through := r2.Vec{X: -4, Y: 8}
	final := r2.Vec{X: 12, Y: 24}
	m, err := e.Issue(motion.OdomPointSequence{Points: []motion.Waypoint{
		motion.Point(through.X, through.Y, motion.Forward, 110),
		motion.Point(final.X, final.Y, motion.Forward, 110),
	}})
	require.NoError(t, err)

	closest, speedThere := math.Inf(1), 0.0
	for i := 0; i < 2000; i++ {
		if _, ok := m.Outcome(); ok {
			break
		}
		e.Step()
		if d := r2.Norm(r2.Sub(p.Pose().Position(), through)); d < closest {
			l, r := p.Speed()
			closest, speedThere = d, (math.Abs(l)+math.Abs(r))/2
		}
	}
	o, ok := m.Outcome()
	require.True(t, ok)

	assert.Equal(t, Completed, o.Kind)
	assert.Equal(t, motion.ExitSettled, o.Exit)
	assert.LessOrEqual(t, closest, e.Settings().ThroughRadius+0.5)
	assert.Greater(t, speedThere, 5.0, "robot should still be moving at the through-point")

	pose := e.Pose()
	assert.InDelta(t, final.X, pose.X, 2)
	assert.InDelta(t, final.Y, pose.Y, 2)
}

func TestPointCloseBesideOrBehindSettlesOnIt(t *testing.T) {
	for _, target := range []r2.Vec{{X: 0, Y: 3.9}, {X: -3.5, Y: 0}, {X: 2, Y: 3}} {
		e, p := newSim(t, chassis.DefaultConfig())
		e.SetPose(odom.Pose{})

		m, err := e.Issue(motion.OdomPointSequence{Points: []motion.Waypoint{
			motion.Point(target.X, target.Y, motion.Forward, 110),
		}})
		require.NoError(t, err)

		o := run(t, e, m, 1000)
		assert.Equal(t, Completed, o.Kind, "target %v", target)
		assert.Equal(t, motion.ExitSettled, o.Exit, "target %v", target)
		settle := e.Constants().OdomDrive.SettleError
		assert.Less(t, r2.Norm(r2.Sub(e.Pose().Position(), target)), settle, "target %v", target)
		assert.Less(t, r2.Norm(r2.Sub(p.Pose().Position(), target)), settle+0.25, "target %v", target)
	}
}

func TestRepeatedTurnsPreempt(t *testing.T) {
	e, p := newSim(t, chassis.DefaultConfig())
	e.SetPose(odom.Pose{})

	var motions []*Motion
	for i := 0; i < 3; i++ {
		m, err := e.Issue(motion.TurnToAngle{Angle: 180, Speed: 90})
		require.NoError(t, err)
		motions = append(motions, m)
	}

	for _, m := range motions[:2] {
		o, ok := m.Outcome()
		require.True(t, ok)
		assert.Equal(t, Preempted, o.Kind)
	}

	o := run(t, e, motions[2], 1000)
	assert.Equal(t, Completed, o.Kind)
	assert.Equal(t, motion.ExitSettled, o.Exit)
	assert.InDelta(t, 180, e.Pose().Theta, 3)
	assert.InDelta(t, 180, p.Pose().Theta, 3)
}

func TestPreemptMidMotion(t *testing.T) {
	e, _ := newSim(t, chassis.DefaultConfig())
	first, err := e.Issue(motion.DriveDistance{Distance: 48, Speed: 110})
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		e.Step()
	}
	second, err := e.Issue(motion.TurnToAngle{Angle: 90, Speed: 90})
	require.NoError(t, err)

	o, ok := first.Outcome()
	require.True(t, ok)
	assert.Equal(t, Preempted, o.Kind)
	assert.Equal(t, 30*e.Period(), o.Elapsed)

	o = run(t, e, second, 1000)
	assert.Equal(t, Completed, o.Kind)
	assert.InDelta(t, 90, e.Pose().Theta, 3)
}

func TestBlockedFinishesBeforeTimeout(t *testing.T) {
	e, p := newSim(t, chassis.DefaultConfig(), sim.WithObstacle(func(pose odom.Pose) bool {
		return pose.X > 10
	}))
	m, err := e.Issue(motion.DriveDistance{Distance: 24, Speed: 110})
	require.NoError(t, err)

	o := run(t, e, m, 1000)
	assert.Equal(t, Completed, o.Kind)
	assert.Equal(t, motion.ExitBlocked, o.Exit)
	assert.Less(t, o.Elapsed, e.Constants().Drive.Timeout)
	assert.True(t, p.Blocked())
	assert.True(t, e.Interfered())
	assert.Equal(t, Done, e.State())
}

func TestDriveWithoutDriveEncodersIsNotBlocked(t *testing.T) {
	e, p := newSim(t, chassis.DefaultConfig(),
		sim.WithoutSource(odom.SourceLeft), sim.WithoutSource(odom.SourceRight))
	m, err := e.Issue(motion.DriveDistance{Distance: 24, Speed: 110})
	require.NoError(t, err)

	o := run(t, e, m, 2000)
	assert.Equal(t, Completed, o.Kind)
	assert.Equal(t, motion.ExitTimedOut, o.Exit)
	assert.False(t, e.Interfered())
	assert.False(t, p.Blocked())
	assert.Greater(t, p.Pose().X, 24.0)
}

func TestAbort(t *testing.T) {
	e, p := newSim(t, chassis.DefaultConfig())
	m, err := e.Issue(motion.DriveDistance{Distance: 48, Speed: 110})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		e.Step()
	}
	l, _ := p.Command()
	assert.NotZero(t, l)

	e.Abort()
	o, ok := m.Outcome()
	require.True(t, ok)
	assert.Equal(t, Aborted, o.Kind)
	assert.Equal(t, Interrupted, e.State())

	e.Step()
	l, r := p.Command()
	assert.Zero(t, l)
	assert.Zero(t, r)

	// Aborting with nothing running is harmless.
	e.Abort()
	assert.Equal(t, Interrupted, e.State())
}

func TestInvalidRequestNeverRuns(t *testing.T) {
	e, _ := newSim(t, chassis.DefaultConfig())

	_, err := e.Issue(nil)
	assert.ErrorIs(t, err, motion.ErrInvalidRequest)
	_, err = e.Issue(motion.DriveDistance{Distance: math.NaN(), Speed: 100})
	assert.ErrorIs(t, err, motion.ErrInvalidRequest)
	assert.Equal(t, Idle, e.State())

	m, err := e.Issue(motion.DriveDistance{Distance: 24, Speed: 100})
	require.NoError(t, err)
	_, err = e.Issue(motion.TurnToAngle{Angle: 90, Speed: 0})
	assert.ErrorIs(t, err, motion.ErrInvalidRequest)

	_, finished := m.Outcome()
	assert.False(t, finished, "a rejected request must not pre-empt the active motion")
	assert.Equal(t, Running, e.State())
}

func TestConstantsOnlyWhileIdle(t *testing.T) {
	e, _ := newSim(t, chassis.DefaultConfig())

	c := e.Constants()
	c.Turn.KP = 4
	require.NoError(t, e.SetConstants(c))
	assert.Equal(t, 4.0, e.Constants().Turn.KP)

	m, err := e.Issue(motion.TurnToAngle{Angle: 45, Speed: 90})
	require.NoError(t, err)
	c.Turn.KP = 5
	assert.ErrorIs(t, e.SetConstants(c), ErrMotionActive)
	assert.Equal(t, 4.0, e.Constants().Turn.KP)

	run(t, e, m, 1000)
	require.NoError(t, e.SetConstants(c))
	assert.Equal(t, 5.0, e.Constants().Turn.KP)

	c.Drive.KP = -1
	assert.Error(t, e.SetConstants(c))
}

func TestManualDriveOnlyWhileIdle(t *testing.T) {
	e, p := newSim(t, chassis.DefaultConfig())
	e.Drive(50, 200)
	e.Step()
	l, r := p.Command()
	assert.Equal(t, 50.0, l)
	assert.Equal(t, float64(motion.MaxSpeed), r)

	_, err := e.Issue(motion.TurnToAngle{Angle: 90, Speed: 60})
	require.NoError(t, err)
	e.Step()
	l, r = p.Command()
	assert.Less(t, l, 0.0)
	assert.Greater(t, r, 0.0)

	e.Abort()
	e.Step()
	l, r = p.Command()
	assert.Zero(t, l)
	assert.Zero(t, r)
}

func TestSetPoseMovesHeldHeading(t *testing.T) {
	e, _ := newSim(t, chassis.DefaultConfig())
	e.SetPose(odom.Pose{X: 5, Y: 5, Theta: 90})
	m, err := e.Issue(motion.DriveDistance{Distance: 12, Speed: 100})
	require.NoError(t, err)
	run(t, e, m, 1000)

	pose := e.Pose()
	assert.InDelta(t, 5, pose.X, 0.5)
	assert.InDelta(t, 17, pose.Y, 1)
	assert.InDelta(t, 90, pose.Theta, 2)
}

func TestTrackerReadingsAndSnapshot(t *testing.T) {
	cfg := chassis.DefaultConfig()
	cfg.Trackers.Perpendicular.Enabled = true
	e, _ := newSim(t, cfg)
	e.Drive(60, 60)
	for i := 0; i < 50; i++ {
		e.Step()
	}

	readings := e.TrackerReadings()
	require.Len(t, readings, 3)
	assert.Equal(t, "l", readings[0].Name)
	assert.Equal(t, "b", readings[2].Name)
	assert.True(t, readings[2].Present)
	assert.Equal(t, cfg.Trackers.Perpendicular.DistanceToCenter, readings[2].Width)
	assert.Greater(t, readings[0].Value, 5.0)

	s := e.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.Equal(t, uint64(51), s.Ticks)
	assert.Equal(t, 60.0, s.Left)
	assert.Empty(t, s.Motion)
	assert.Nil(t, s.Last)

	m, err := e.Issue(motion.TurnToAngle{Angle: 30, Speed: 60})
	require.NoError(t, err)
	e.Step()
	s = e.Snapshot()
	assert.Equal(t, m.ID.String(), s.MotionID)
	assert.NotEmpty(t, s.Motion)
}

func TestMissingSourceReported(t *testing.T) {
	e, _ := newSim(t, chassis.DefaultConfig(), sim.WithoutSource(odom.SourceHeading))
	e.Step()
	assert.Contains(t, e.Snapshot().Missing, odom.SourceHeading.String())
}

func TestLoop(t *testing.T) {
	cfg := chassis.DefaultConfig()
	cfg.Period = time.Millisecond
	p := sim.New(cfg)
	e := New(cfg, p, p)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go e.Loop(ctx, &wg)
	defer func() {
		cancel()
		wg.Wait()
	}()

	waitCtx, done := context.WithTimeout(context.Background(), 20*time.Second)
	defer done()

	require.NoError(t, e.WaitTicks(waitCtx, 2))
	_, err := e.Issue(motion.DriveDistance{Distance: 24, Speed: 110})
	require.NoError(t, err)

	require.NoError(t, e.WaitUntil(waitCtx, 12))
	assert.GreaterOrEqual(t, e.Pose().X, 12.0)

	o, err := e.WaitForCompletion(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, Completed, o.Kind)
	assert.InDelta(t, 24, o.Pose.X, 1)

	before := e.Snapshot().Ticks
	require.NoError(t, e.Delay(waitCtx, 10*time.Millisecond))
	assert.GreaterOrEqual(t, e.Snapshot().Ticks-before, uint64(10))

	// Nothing active: the last outcome comes straight back.
	again, err := e.WaitForCompletion(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, o, again)
}

func TestStoppingLoopAbortsMotion(t *testing.T) {
	cfg := chassis.DefaultConfig()
	cfg.Period = time.Millisecond
	p := sim.New(cfg)
	e := New(cfg, p, p)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go e.Loop(ctx, &wg)

	m, err := e.Issue(motion.DriveDistance{Distance: 200, Speed: 110})
	require.NoError(t, err)
	require.NoError(t, e.WaitTicks(context.Background(), 20))

	cancel()
	wg.Wait()

	o, ok := m.Outcome()
	require.True(t, ok)
	assert.Equal(t, Aborted, o.Kind)
	l, r := p.Command()
	assert.Zero(t, l)
	assert.Zero(t, r)

	_, err = e.Issue(motion.DriveDistance{Distance: 1, Speed: 50})
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, e.WaitTicks(context.Background(), 1), ErrStopped)
}

func TestWaitHonoursContext(t *testing.T) {
	e, _ := newSim(t, chassis.DefaultConfig())
	m, err := e.Issue(motion.DriveDistance{Distance: 24, Speed: 110})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, e.WaitTicks(ctx, 5), context.DeadlineExceeded)
}
