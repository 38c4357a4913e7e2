package auton

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemminiz/EZ-Template/pkg/angle"
	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/executor"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/sim"
)

// spin starts a simulated chassis running flat out and stops it when the
// test ends.
func spin(t *testing.T, opts ...sim.Option) (*executor.Executor, *sim.Plant) {
	t.Helper()
	cfg := chassis.DefaultConfig()
	p := sim.New(cfg, opts...)
	e := executor.New(cfg, p, p)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go e.Spin(ctx, &wg)
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return e, p
}

func runRoutine(t *testing.T, e *executor.Executor, r RoutineFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	require.NoError(t, Autonomous(ctx, e, r))
}

func TestSelector(t *testing.T) {
	s := NewSelector(Examples()...)
	assert.Equal(t, "Odom", s.Selected().Name)
	assert.Equal(t, "Interference", s.Prev().Name)
	assert.Equal(t, "Odom", s.Next().Name)
	assert.Equal(t, "Example Drive", s.Next().Name)

	e, err := s.Select("Swing Example")
	require.NoError(t, err)
	assert.Equal(t, "Swing Example", e.Name)
	assert.Equal(t, []string{"page 6/9", "Swing Example", "Swing in an 'S' curve."}, s.Lines())

	_, err = s.Select("nope")
	assert.Error(t, err)
	assert.Equal(t, "Swing Example", s.Selected().Name)
}

func TestOdomExampleReturnsHome(t *testing.T) {
	e, p := spin(t)
	runRoutine(t, e, OdomExample)

	pose := e.Pose()
	assert.InDelta(t, 0, pose.X, 2)
	assert.InDelta(t, 0, pose.Y, 2)
	assert.InDelta(t, 0, angle.Diff(0, pose.Theta), 3)
	assert.InDelta(t, 0, p.Pose().X, 2)
}

func TestDriveExampleComesBack(t *testing.T) {
	e, _ := spin(t)
	runRoutine(t, e, DriveExample)
	assert.InDelta(t, 0, e.Pose().X, 1.5)
	assert.InDelta(t, 0, e.Pose().Y, 1)
}

func TestExamplesFinish(t *testing.T) {
	for _, entry := range Examples() {
		t.Run(entry.Name, func(t *testing.T) {
			e, _ := spin(t)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			require.NoError(t, Autonomous(ctx, e, entry.Routine))
			assert.True(t, e.IsSettled())
		})
	}
}

func TestTurnExampleEndsAtZero(t *testing.T) {
	e, _ := spin(t)
	runRoutine(t, e, TurnExample)
	assert.InDelta(t, 0, e.Pose().Theta, 3)
}

func TestInterferenceChangesBehaviour(t *testing.T) {
	t.Run("clear", func(t *testing.T) {
		e, _ := spin(t)
		runRoutine(t, e, InterferedExample)
		assert.False(t, e.Interfered())
		assert.InDelta(t, 90, e.Pose().Theta, 3)
	})
	t.Run("blocked", func(t *testing.T) {
		e, p := spin(t, sim.WithObstacle(func(pose odom.Pose) bool { return pose.X > 10 }))
		runRoutine(t, e, InterferedExample)
		assert.False(t, e.Interfered(), "backing off should be unobstructed")
		assert.InDelta(t, 0, e.Pose().Theta, 3)
		assert.Less(t, p.Pose().X, 0.0)
	})
}

func TestAbortInterruptsRoutine(t *testing.T) {
	cfg := chassis.DefaultConfig()
	p := sim.New(cfg)
	e := executor.New(cfg, p, p)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go e.Loop(ctx, &wg)
	defer wg.Wait()
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		errs <- Autonomous(ctx, e, RoutineFunc(DriveExample))
	}()
	require.Eventually(t, func() bool { return !e.IsSettled() }, 5*time.Second, time.Millisecond)
	e.Abort()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(5 * time.Second):
		t.Fatal("routine kept running after abort")
	}
}
