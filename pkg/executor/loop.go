package executor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/motion"
)

// Loop runs the control loop until ctx is cancelled.  On exit the actuators
// are zeroed and any active motion is aborted.
func (e *Executor) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer e.log.Info("control loop exited")
	defer e.shutdown()

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	e.log.Info("control loop started", "period", e.period)
	var lastTick = time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if late := now.Sub(lastTick); late > 3*e.period {
				e.log.Debug("control loop overran", "gap", late)
			}
			lastTick = now
			e.tick()
		}
	}
}

// Spin runs ticks back to back until ctx is cancelled.  Each tick still
// counts as one period, so a simulated plant runs faster than real time.
func (e *Executor) Spin(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer e.shutdown()
	for ctx.Err() == nil {
		e.tick()
		runtime.Gosched()
	}
}

// Step runs one control tick synchronously.  Simulations and tests use it in
// place of Loop.
func (e *Executor) Step() {
	e.tick()
}

func (e *Executor) shutdown() {
	e.controlLock.Lock()
	if m := e.active; m != nil {
		e.finish(m, Aborted, motion.ExitNone)
	}
	e.manual = [2]float64{}
	e.stopped = true
	e.onTick.Broadcast()
	e.controlLock.Unlock()

	e.setMotors(0, 0)
}

func (e *Executor) tick() {
	// Sensors may block on I/O so read them outside the lock.
	sample := e.sensor.Sample()

	e.controlLock.Lock()
	previous := e.estimator.Pose()
	pose := e.estimator.Update(e.differ.Next(sample))
	e.readings = sample
	if missing := e.estimator.Missing(); missing != e.missing {
		if missing != 0 {
			e.log.Warn("tracking sources unavailable", "missing", missing)
		} else {
			e.log.Info("all tracking sources available")
		}
		e.missing = missing
	}

	var left, right float64
	if m := e.active; m != nil {
		out := m.prim.Step(motion.Tick{Pose: pose, Previous: previous, DT: e.period, Missing: e.missing})
		m.ticks++
		if out.Exit != motion.ExitNone {
			e.finish(m, Completed, out.Exit)
		} else {
			left, right = out.Left, out.Right
			m.state = Running
			if out.InBand {
				m.state = Settling
			}
			if m.state != e.state {
				e.log.Debug("motion state", "motion", m.ID, "state", m.state, "error", out.Error)
			}
			e.state = m.state
		}
	} else {
		left, right = e.manual[chassis.Left], e.manual[chassis.Right]
	}
	e.command = [2]float64{left, right}
	e.ticks++
	e.onTick.Broadcast()
	e.controlLock.Unlock()

	e.setMotors(left, right)
}

func (e *Executor) setMotors(left, right float64) {
	if err := e.act.SetVelocity(chassis.Left, left); err != nil {
		e.log.Warn("failed to set left velocity", "error", err)
	}
	if err := e.act.SetVelocity(chassis.Right, right); err != nil {
		e.log.Warn("failed to set right velocity", "error", err)
	}
}
