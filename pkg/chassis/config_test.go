package chassis

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemminiz/EZ-Template/pkg/odom"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chassis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0666))
	return path
}

func TestMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, cfg.Validate())
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
period: 5ms
drive:
  track_width: 11.5
trackers:
  heading_sensor_weight: 0.8
  perpendicular:
    enabled: true
    position: front
    distance_to_center: 2.5
constants:
  turn:
    kp: 4.5
    settle_error: 2
    timeout: 2s
motion:
  through_radius: 5
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, cfg.Period)
	assert.Equal(t, 11.5, cfg.Drive.TrackWidth)
	assert.Equal(t, DefaultWheelDiameterIn, cfg.Drive.WheelDiameter)
	assert.Equal(t, 4.5, cfg.Constants.Turn.KP)
	assert.Equal(t, 2.0, cfg.Constants.Turn.SettleError)
	assert.Equal(t, 2*time.Second, cfg.Constants.Turn.Timeout)
	assert.Equal(t, 5.0, cfg.Motion.ThroughRadius)

	// Drive encoders on both sides, front tracker ahead of centre.
	if diff := cmp.Diff(odom.Config{
		LeftOffset:          5.75,
		RightOffset:         5.75,
		PerpendicularOffset: 2.5,
		HeadingSensorWeight: 0.8,
	}, cfg.Odometry()); diff != "" {
		t.Errorf("odometry mismatch (-want +got):\n%s", diff)
	}
}

func TestRejectsBadConfig(t *testing.T) {
	for name, body := range map[string]string{
		"unknown key":      "wheels: 4\n",
		"zero period":      "period: 0s\n",
		"weight":           "trackers:\n  heading_sensor_weight: 1.5\n",
		"negative gain":    "constants:\n  drive:\n    kp: -1\n",
		"tracker position": "trackers:\n  perpendicular:\n    enabled: true\n    position: side\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestWriteConfigRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trackers.Left.Enabled = true
	cfg.Constants.Swing.KD = 0.7
	path := filepath.Join(t.TempDir(), "in-use.yaml")
	require.NoError(t, WriteConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, DefaultTrackerOffsetIn, loaded.Odometry().LeftOffset)
	assert.Equal(t, DefaultTrackWidthIn/2.0, loaded.Odometry().RightOffset)
}

func TestTopSpeed(t *testing.T) {
	d := DefaultConfig().Drive
	assert.InDelta(t, 74.08, d.TopSpeed(), 0.01)
}
