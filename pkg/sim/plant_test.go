package sim

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/odom"
)

func TestReachesTopSpeed(t *testing.T) {
	cfg := chassis.DefaultConfig()
	p := New(cfg)
	require.NoError(t, p.SetVelocity(chassis.Left, 127))
	require.NoError(t, p.SetVelocity(chassis.Right, 200))
	for i := 0; i < 200; i++ {
		p.Sample()
	}
	l, r := p.Speed()
	assert.InDelta(t, cfg.Drive.TopSpeed(), l, 0.01)
	assert.InDelta(t, cfg.Drive.TopSpeed(), r, 0.01, "command must be clamped")
	assert.InDelta(t, 0, p.Pose().Y, 1e-9)
	assert.Greater(t, p.Pose().X, 100.0)
}

func TestOdometryTracksTruth(t *testing.T) {
	for name, cfg := range map[string]chassis.Config{
		"drive encoders": chassis.DefaultConfig(),
		"tracking wheels": func() chassis.Config {
			c := chassis.DefaultConfig()
			c.Trackers.Left.Enabled = true
			c.Trackers.Right.Enabled = true
			c.Trackers.Perpendicular.Enabled = true
			return c
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			p := New(cfg)
			est := odom.NewEstimator(cfg.Odometry())
			d := odom.NewDiffer()
			est.Update(d.Next(p.Sample()))
			for i, cmd := range [][2]float64{{80, 80}, {-40, 60}, {100, 20}, {-90, -90}} {
				_ = p.SetVelocity(chassis.Left, cmd[0])
				_ = p.SetVelocity(chassis.Right, cmd[1])
				for j := 0; j < 50; j++ {
					est.Update(d.Next(p.Sample()))
				}
				if diff := cmp.Diff(p.Pose(), est.Pose(), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
					t.Fatalf("segment %d: estimate diverged (-truth +estimate):\n%s", i, diff)
				}
			}
		})
	}
}

func TestPerpendicularAbsentUnlessFitted(t *testing.T) {
	p := New(chassis.DefaultConfig())
	s := p.Sample()
	assert.ErrorIs(t, s.Perpendicular.Err, odom.ErrSensorUnavailable)
	assert.True(t, s.Heading.OK())

	p = New(chassis.DefaultConfig(), WithoutSource(odom.SourceHeading))
	assert.False(t, p.Sample().Heading.OK())
}

func TestObstacleStopsRobot(t *testing.T) {
	p := New(chassis.DefaultConfig(), WithObstacle(func(pose odom.Pose) bool {
		return pose.X > 10
	}))
	_ = p.SetVelocity(chassis.Left, 110)
	_ = p.SetVelocity(chassis.Right, 110)
	var last odom.Sample
	for i := 0; i < 300; i++ {
		last = p.Sample()
	}
	assert.True(t, p.Blocked())
	assert.LessOrEqual(t, p.Pose().X, 10.0)
	assert.InDelta(t, p.Pose().X, last.Left.Value, 1e-9)
}

func TestSavePlot(t *testing.T) {
	p := New(chassis.DefaultConfig())
	_ = p.SetVelocity(chassis.Left, 50)
	_ = p.SetVelocity(chassis.Right, 70)
	for i := 0; i < 100; i++ {
		p.Sample()
	}
	file := filepath.Join(t.TempDir(), "path.png")
	require.NoError(t, SavePlot(file, "arc", p.Path(), []r2.Vec{{X: 10, Y: 5}}))
	assert.FileExists(t, file)
}
