package odom

import (
	"github.com/pkg/errors"
)

// ErrSensorUnavailable marks a reading from a source that is not fitted, not
// calibrated or has stopped reporting.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Reading is one value from a tracking source.
type Reading struct {
	Value float64
	Err   error
}

func Present(v float64) Reading {
	return Reading{Value: v}
}

func Absent() Reading {
	return Reading{Err: ErrSensorUnavailable}
}

func (r Reading) OK() bool {
	return r.Err == nil
}

// Sample is a snapshot of every tracking source.  Distances are cumulative
// inches travelled by each tracker; Heading is a continuous heading in
// degrees, positive anticlockwise.
type Sample struct {
	Left          Reading
	Right         Reading
	Perpendicular Reading
	Heading       Reading
}

// Deltas is the change in each source since the previous tick.
type Deltas struct {
	Left          Reading
	Right         Reading
	Perpendicular Reading
	Heading       Reading
}

// Differ converts a stream of cumulative samples into per-tick deltas.  A
// source that drops out and comes back is re-primed rather than producing
// one large jump.
type Differ struct {
	last Sample
}

func (d *Differ) Next(s Sample) Deltas {
	out := Deltas{
		Left:          delta(d.last.Left, s.Left),
		Right:         delta(d.last.Right, s.Right),
		Perpendicular: delta(d.last.Perpendicular, s.Perpendicular),
		Heading:       delta(d.last.Heading, s.Heading),
	}
	d.last = s
	return out
}

// Reset forgets the previous sample so the next one only primes the differ.
func (d *Differ) Reset() {
	d.last = Sample{
		Left:          Absent(),
		Right:         Absent(),
		Perpendicular: Absent(),
		Heading:       Absent(),
	}
}

func NewDiffer() *Differ {
	d := &Differ{}
	d.Reset()
	return d
}

func delta(prev, cur Reading) Reading {
	if !cur.OK() {
		return cur
	}
	if !prev.OK() {
		// First reading from this source: nothing has moved yet.
		return Present(0)
	}
	return Present(cur.Value - prev.Value)
}
