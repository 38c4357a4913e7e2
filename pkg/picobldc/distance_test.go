package picobldc

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounters struct {
	values []PerMotorVal[int16]
	err    error
}

func (f *fakeCounters) RawDistancesTraveled() (PerMotorVal[int16], error) {
	if f.err != nil {
		return PerMotorVal[int16]{}, f.err
	}
	v := f.values[0]
	f.values = f.values[1:]
	return v, nil
}

func TestDistanceTrackerAccumulates(t *testing.T) {
	f := &fakeCounters{values: []PerMotorVal[int16]{
		{100, 0, -50, 0},
		{356, 0, -306, 512},
		{612, -256, -562, 1024},
	}}
	d := NewDistanceTracker(f)
	assert.False(t, d.Primed())

	for n := 0; n < 3; n++ {
		require.NoError(t, d.Poll())
	}
	assert.True(t, d.Primed())
	assert.Equal(t, PerMotorVal[float64]{2, -1, -2, 4}, d.AccumulatedRotations())

	d.Zero()
	assert.Equal(t, PerMotorVal[float64]{}, d.AccumulatedRotations())
}

func TestDistanceTrackerWraps(t *testing.T) {
	f := &fakeCounters{values: []PerMotorVal[int16]{
		{math.MaxInt16 - 10, math.MinInt16 + 10},
		{math.MinInt16 + 245, math.MaxInt16 - 245},
	}}
	d := NewDistanceTracker(f)
	require.NoError(t, d.Poll())
	require.NoError(t, d.Poll())
	rot := d.AccumulatedRotations()
	assert.Equal(t, 1.0, rot[0])
	assert.Equal(t, -1.0, rot[1])
}

func TestDistanceTrackerError(t *testing.T) {
	boom := errors.New("bus error")
	d := NewDistanceTracker(&fakeCounters{err: boom})
	assert.ErrorIs(t, d.Poll(), boom)
	assert.False(t, d.Primed())
}
