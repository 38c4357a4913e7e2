package auton

import (
	"context"
	"time"

	"github.com/jemminiz/EZ-Template/pkg/executor"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/motion"
)

const (
	DriveSpeed = 110
	TurnSpeed  = 90
	SwingSpeed = 110
)

// Examples returns the stock routines in selector order.
func Examples() []Entry {
	return []Entry{
		{"Odom", "Pass through (-4, 8) to (12, 24), then back to the origin.", RoutineFunc(OdomExample)},
		{"Example Drive", "Drive forward and come back.", RoutineFunc(DriveExample)},
		{"Example Turn", "Turn 3 times.", RoutineFunc(TurnExample)},
		{"Drive and Turn", "Drive forward, turn, come back.", RoutineFunc(DriveAndTurn)},
		{"Drive and Turn, slow", "Slow down during drive.", RoutineFunc(WaitUntilChangeSpeed)},
		{"Swing Example", "Swing in an 'S' curve.", RoutineFunc(SwingExample)},
		{"Motion Chaining", "Drive forward, turn, and come back, blending the turns together.", RoutineFunc(MotionChaining)},
		{"Combine all 3 movements", "Drive, turn and swing.", RoutineFunc(CombiningMovements)},
		{"Interference", "After driving forward, behave differently if interfered with.", RoutineFunc(InterferedExample)},
	}
}

func drive(distance float64, slew bool) motion.DriveDistance {
	return motion.DriveDistance{Distance: distance, Speed: DriveSpeed, Slew: slew}
}

func turn(heading float64) motion.TurnToAngle {
	return motion.TurnToAngle{Angle: heading, Speed: TurnSpeed}
}

func swing(side motion.SwingSide, heading float64) motion.SwingTurn {
	return motion.SwingTurn{Side: side, Angle: heading, Speed: SwingSpeed, OppositeSpeed: 45}
}

// OdomExample drives to (12, 24) through (-4, 8), then reverses to the origin
// and faces 0.
func OdomExample(ctx context.Context, e *executor.Executor) error {
	return moves(ctx, e,
		motion.OdomPointSequence{Slew: true, Points: []motion.Waypoint{
			motion.Point(-4, 8, motion.Forward, DriveSpeed),
			motion.Point(12, 24, motion.Forward, DriveSpeed),
		}},
		motion.OdomPointSequence{Slew: true, Points: []motion.Waypoint{
			motion.Point(0, 0, motion.Reverse, DriveSpeed).Facing(0),
		}},
	)
}

func DriveExample(ctx context.Context, e *executor.Executor) error {
	return moves(ctx, e,
		drive(24, true),
		drive(-12, false),
		drive(-12, false),
	)
}

func TurnExample(ctx context.Context, e *executor.Executor) error {
	return moves(ctx, e,
		turn(90),
		turn(45),
		turn(0),
	)
}

func DriveAndTurn(ctx context.Context, e *executor.Executor) error {
	return moves(ctx, e,
		drive(24, true),
		turn(45),
		turn(-45),
		turn(0),
		drive(-24, true),
	)
}

// WaitUntilChangeSpeed drops to a crawl partway through each drive.
func WaitUntilChangeSpeed(ctx context.Context, e *executor.Executor) error {
	if err := slowAfter(ctx, e, drive(24, true), 6, 30); err != nil {
		return err
	}
	if err := moves(ctx, e, turn(45), turn(-45), turn(0)); err != nil {
		return err
	}
	return slowAfter(ctx, e, drive(-24, true), 6, 30)
}

func slowAfter(ctx context.Context, e *executor.Executor, r motion.Request, progress, speed float64) error {
	m, err := e.Issue(r)
	if err != nil {
		return err
	}
	if err := e.WaitUntil(ctx, progress); err != nil {
		return err
	}
	if err := e.SetMaxSpeed(speed); err != nil {
		return err
	}
	o, err := m.Wait(ctx)
	if err != nil {
		return err
	}
	if o.Kind != executor.Completed {
		return ErrInterrupted
	}
	return nil
}

func SwingExample(ctx context.Context, e *executor.Executor) error {
	return moves(ctx, e,
		swing(motion.SwingLeft, 45),
		swing(motion.SwingRight, 0),
		swing(motion.SwingRight, 45),
		swing(motion.SwingLeft, 0),
	)
}

// MotionChaining hands each turn over to the next before it settles.
func MotionChaining(ctx context.Context, e *executor.Executor) error {
	chained := func(heading float64) motion.TurnToAngle {
		t := turn(heading)
		t.Chain = true
		return t
	}
	return moves(ctx, e,
		drive(24, true),
		chained(45),
		chained(-45),
		turn(0),
		drive(-24, true),
	)
}

func CombiningMovements(ctx context.Context, e *executor.Executor) error {
	return moves(ctx, e,
		drive(24, true),
		turn(45),
		swing(motion.SwingRight, -45),
		turn(0),
		drive(-24, true),
	)
}

// InterferedExample turns if the drive was clean, and tries to pull free if
// something stopped it.
func InterferedExample(ctx context.Context, e *executor.Executor) error {
	if err := moves(ctx, e, drive(24, true)); err != nil {
		return err
	}
	if e.Interfered() {
		return tug(ctx, e, 3)
	}
	return moves(ctx, e, turn(90))
}

// tug backs off at full power, creeping back and retrying while still stuck.
func tug(ctx context.Context, e *executor.Executor, attempts int) error {
	logger := log.For("auton")
	for i := 0; i < attempts-1; i++ {
		logger.Info("tugging", "attempt", i+1)
		if err := moves(ctx, e, motion.DriveDistance{Distance: -12, Speed: motion.MaxSpeed}); err != nil {
			return err
		}
		if !e.Interfered() {
			return nil
		}
		if _, err := e.Issue(motion.DriveDistance{Distance: -2, Speed: 20}); err != nil {
			return err
		}
		if err := e.Delay(ctx, time.Second); err != nil {
			return err
		}
	}
	e.Abort()
	return nil
}
