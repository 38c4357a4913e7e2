package tuner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/executor"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/sim"
)

func newExecutor() *executor.Executor {
	cfg := chassis.DefaultConfig()
	p := sim.New(cfg)
	e := executor.New(cfg, p, p)
	e.Step()
	return e
}

func TestSelectionWraps(t *testing.T) {
	tu := New(newExecutor())
	name, v := tu.Selected()
	assert.Equal(t, "drive kp", name)
	assert.Equal(t, 20.0, v)

	tu.SelectPrev()
	name, _ = tu.Selected()
	assert.Equal(t, "odom angular kd", name)
	tu.SelectNext()
	tu.SelectNext()
	name, _ = tu.Selected()
	assert.Equal(t, "drive ki", name)
}

func TestAdjustWhileIdle(t *testing.T) {
	e := newExecutor()
	tu := New(e)
	require.NoError(t, tu.Increase())
	require.NoError(t, tu.Increase())
	assert.Equal(t, 21.0, e.Constants().Drive.KP)

	tu.SelectNext()
	require.NoError(t, tu.Decrease())
	assert.Zero(t, e.Constants().Drive.KI, "constants never go negative")
}

func TestAdjustRejectedWhileMoving(t *testing.T) {
	e := newExecutor()
	tu := New(e)
	tu.Toggle()
	_, err := e.Issue(motion.TurnToAngle{Angle: 90, Speed: 60})
	require.NoError(t, err)

	err = tu.Increase()
	assert.ErrorIs(t, err, executor.ErrMotionActive)
	assert.Equal(t, 20.0, e.Constants().Drive.KP)
	assert.Contains(t, tu.String(), "busy:")

	e.Abort()
	require.NoError(t, tu.Increase())
	assert.NotContains(t, tu.String(), "busy:")
}

func TestLines(t *testing.T) {
	e := newExecutor()
	e.SetPose(odom.Pose{X: 1.5, Y: -2, Theta: 90})
	tu := New(e)

	lines := tu.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "x: 1.50 y: -2.00 a: 90.00", lines[0])
	assert.Equal(t, "l tracker: 0.00  width: 6.00", lines[1])
	assert.Equal(t, "b tracker: --", lines[3])

	assert.True(t, tu.Toggle())
	lines = tu.Lines()
	assert.Equal(t, "drive kp: 20", lines[0])
	assert.Equal(t, "page 1/19", lines[1])
}
