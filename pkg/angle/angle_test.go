package angle

import (
	"math"
	"testing"
)

func TestFromFloat(t *testing.T) {
	expectWrapped(t, 0, 0)
	expectWrapped(t, 179, 179)
	expectWrapped(t, -179, -179)
	expectWrapped(t, 180, 180)
	expectWrapped(t, -180, 180)
	expectWrapped(t, 360, 0)
	expectWrapped(t, 361, 1)
	expectWrapped(t, 359, -1)
	expectWrapped(t, 720+180, 180)
	expectWrapped(t, -81-360, -81)
}

func expectWrapped(t *testing.T, in, expected float64) {
	t.Helper()
	if got := FromFloat(in).Float(); math.Abs(got-expected) > 1e-9 {
		t.Errorf("FromFloat(%f) = %f, expected %f", in, got, expected)
	}
}

func TestDiff(t *testing.T) {
	for _, tc := range []struct{ target, current, expected float64 }{
		{90, 0, 90},
		{0, 90, -90},
		{-170, 170, 20},
		{170, -170, -20},
		{720, 10, -10},
	} {
		if got := Diff(tc.target, tc.current); math.Abs(got-tc.expected) > 1e-9 {
			t.Errorf("Diff(%f, %f) = %f, expected %f", tc.target, tc.current, got, tc.expected)
		}
	}
}

func TestUnwrapperCrossesBoundary(t *testing.T) {
	var u Unwrapper
	var last float64
	for _, yaw := range []float64{170, 179, -179, -170, -90, 0, 90, 180, -90} {
		last = u.Update(yaw)
	}
	// Every step is anticlockwise: 460 degrees in total from the first reading.
	if math.Abs(last-630) > 1e-9 {
		t.Errorf("Unwrapped heading = %f, expected 630", last)
	}
}
