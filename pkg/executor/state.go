package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
)

// State is the executor's position in the motion lifecycle.
type State int

const (
	Idle State = iota
	Running
	Settling
	Done
	Interrupted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Settling:
		return "settling"
	case Done:
		return "done"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active is true while a motion owns the actuators.
func (s State) Active() bool {
	return s == Running || s == Settling
}

// Kind says how a motion ended.
type Kind int

const (
	// Completed means the primitive reached an exit condition; see
	// Outcome.Exit for which one.
	Completed Kind = iota
	// Preempted means a newer request replaced it.
	Preempted
	// Aborted means Abort was called or the control loop stopped.
	Aborted
)

func (k Kind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Preempted:
		return "preempted"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Outcome struct {
	MotionID uuid.UUID     `json:"motion_id"`
	Kind     Kind          `json:"kind"`
	Exit     motion.Exit   `json:"exit"`
	Elapsed  time.Duration `json:"elapsed"`
	Pose     odom.Pose     `json:"pose"`
}

func (o Outcome) String() string {
	if o.Kind == Completed {
		return fmt.Sprintf("%s %v (%v) after %v at %v", o.MotionID, o.Kind, o.Exit, o.Elapsed, o.Pose)
	}
	return fmt.Sprintf("%s %v after %v at %v", o.MotionID, o.Kind, o.Elapsed, o.Pose)
}

// Motion is the handle for one issued request.
type Motion struct {
	ID      uuid.UUID
	Request motion.Request

	prim  motion.Primitive
	state State
	ticks int

	done    chan struct{}
	outcome Outcome
}

func newMotion(r motion.Request, prim motion.Primitive) *Motion {
	return &Motion{
		ID:      uuid.New(),
		Request: r,
		prim:    prim,
		state:   Running,
		done:    make(chan struct{}),
	}
}

// Done is closed once the motion has an outcome.
func (m *Motion) Done() <-chan struct{} {
	return m.done
}

// Outcome returns the result without blocking.
func (m *Motion) Outcome() (Outcome, bool) {
	select {
	case <-m.done:
		return m.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the motion ends or ctx is done.  It never delays the
// control loop.
func (m *Motion) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-m.done:
		return m.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (m *Motion) finished() bool {
	return m.state == Done || m.state == Interrupted
}
