package picobldc

type distanceProvider interface {
	RawDistancesTraveled() (PerMotorVal[int16], error)
}

// DistanceTracker turns the wrapping 16-bit counters into accumulated
// rotations.  It must be polled often enough that no counter moves more than
// half its range between polls.
type DistanceTracker struct {
	pico distanceProvider

	doneFirstPoll bool
	lastRawValues PerMotorVal[int16]

	accumulator PerMotorVal[int64]
}

func NewDistanceTracker(pico distanceProvider) *DistanceTracker {
	return &DistanceTracker{
		pico: pico,
	}
}

func (d *DistanceTracker) Poll() error {
	raw, err := d.pico.RawDistancesTraveled()
	if err != nil {
		return err
	}

	if d.doneFirstPoll {
		for m, newD := range raw {
			oldD := d.lastRawValues[m]
			// int16 subtraction wraps, giving the short way round.
			delta := newD - oldD
			d.accumulator[m] += int64(delta)
		}
	}

	d.lastRawValues = raw
	d.doneFirstPoll = true
	return nil
}

// Primed is true once a first reading has been taken.
func (d *DistanceTracker) Primed() bool {
	return d.doneFirstPoll
}

func (d *DistanceTracker) AccumulatedRotations() (rotations PerMotorVal[float64]) {
	for m, v := range d.accumulator {
		rotations[m] = float64(v) / 256.0
	}
	return
}

func (d *DistanceTracker) Zero() {
	d.accumulator = PerMotorVal[int64]{}
}
