package joystick

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/jemminiz/EZ-Template/pkg/auton"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/sound"
)

// stickDeadband is the stick travel, in actuator units, treated as centred.
const stickDeadband = 5

type Drivetrain interface {
	Drive(left, right float64)
	Abort()
}

type Tuner interface {
	Toggle() bool
	Enabled() bool
	SelectNext()
	SelectPrev()
	Increase() error
	Decrease() error
}

type Selector interface {
	Next() auton.Entry
	Prev() auton.Entry
}

// Operator maps controller events onto the robot.  The sticks drive tank
// style.  X shows the tuner; with it shown the D-pad picks a constant and
// A and Y step it, otherwise the D-pad picks the autonomous routine.
// Holding B and pressing down runs the routine; pressing B while it runs
// stops it.
type Operator struct {
	drive    Drivetrain
	tuner    Tuner
	selector Selector
	auton    func(ctx context.Context) error
	cue      func(cue string)
	log      *slog.Logger

	lock      sync.Mutex
	sticks    [2]float64
	bHeld     bool
	dpad      [2]int16
	cancelRun context.CancelFunc
	running   sync.WaitGroup
}

func NewOperator(drive Drivetrain, tuner Tuner, selector Selector, auton func(ctx context.Context) error, cue func(string)) *Operator {
	if cue == nil {
		cue = func(string) {}
	}
	return &Operator{
		drive:    drive,
		tuner:    tuner,
		selector: selector,
		auton:    auton,
		cue:      cue,
		log:      log.For("operator"),
	}
}

// Loop handles events until the channel closes or ctx is done, then stops
// any running routine.
func (o *Operator) Loop(ctx context.Context, events <-chan *Event) {
	defer o.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				o.log.Warn("joystick events channel closed")
				return
			}
			o.Handle(ctx, ev)
		}
	}
}

// Stop cancels a running routine and waits for it.
func (o *Operator) Stop() {
	o.lock.Lock()
	cancel := o.cancelRun
	o.lock.Unlock()
	if cancel != nil {
		cancel()
	}
	o.running.Wait()
}

// Running reports whether an autonomous routine is in progress.
func (o *Operator) Running() bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.cancelRun != nil
}

func (o *Operator) Handle(ctx context.Context, ev *Event) {
	switch ev.Type {
	case EventTypeAxis:
		o.onAxis(ctx, ev.Number, ev.Value)
	case EventTypeButton:
		o.onButton(ev.Number, ev.Value != 0)
	}
}

func (o *Operator) onAxis(ctx context.Context, axis uint8, value int16) {
	switch axis {
	case AxisLStickY, AxisRStickY:
		side := 0
		if axis == AxisRStickY {
			side = 1
		}
		o.lock.Lock()
		o.sticks[side] = stickToSpeed(value)
		left, right := o.sticks[0], o.sticks[1]
		o.lock.Unlock()
		o.drive.Drive(left, right)
	case AxisDPadX, AxisDPadY:
		i := 0
		if axis == AxisDPadY {
			i = 1
		}
		o.lock.Lock()
		pressed := o.dpad[i] == 0 && value != 0
		o.dpad[i] = value
		bHeld := o.bHeld
		o.lock.Unlock()
		if !pressed {
			return
		}
		if axis == AxisDPadY {
			if value > 0 && bHeld {
				o.runAuton(ctx)
			}
			return
		}
		o.navigate(value > 0)
	}
}

func (o *Operator) navigate(forwards bool) {
	if o.tuner.Enabled() {
		if forwards {
			o.tuner.SelectNext()
		} else {
			o.tuner.SelectPrev()
		}
		return
	}
	var e auton.Entry
	if forwards {
		e = o.selector.Next()
	} else {
		e = o.selector.Prev()
	}
	o.log.Info("selected routine", "name", e.Name)
	o.cue(sound.CueSelection)
}

func (o *Operator) onButton(button uint8, pressed bool) {
	if button == ButtonB {
		o.lock.Lock()
		o.bHeld = pressed
		cancel := o.cancelRun
		o.lock.Unlock()
		if pressed && cancel != nil {
			o.log.Info("stopping autonomous")
			o.drive.Abort()
			cancel()
		}
		return
	}
	if !pressed {
		return
	}
	switch button {
	case ButtonX:
		o.tuner.Toggle()
		o.cue(sound.CueTuning)
	case ButtonA, ButtonY:
		if !o.tuner.Enabled() {
			return
		}
		var err error
		if button == ButtonA {
			err = o.tuner.Increase()
		} else {
			err = o.tuner.Decrease()
		}
		if err != nil {
			o.log.Warn("tuning rejected", "error", err)
		}
	}
}

func (o *Operator) runAuton(ctx context.Context) {
	o.lock.Lock()
	if o.cancelRun != nil {
		o.lock.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancelRun = cancel
	o.running.Add(1)
	o.lock.Unlock()

	o.log.Info("starting autonomous")
	o.cue(sound.CueStart)
	go func() {
		defer o.running.Done()
		err := o.auton(ctx)
		o.lock.Lock()
		o.cancelRun = nil
		o.lock.Unlock()
		cancel()
		if err != nil {
			o.log.Warn("autonomous failed", "error", err)
			o.cue(sound.CueAbort)
			return
		}
		o.cue(sound.CueDone)
	}()
}

func stickToSpeed(value int16) float64 {
	v := -float64(value) / AxisMax * motion.MaxSpeed
	if math.Abs(v) < stickDeadband {
		return 0
	}
	return math.Max(-motion.MaxSpeed, math.Min(motion.MaxSpeed, v))
}
