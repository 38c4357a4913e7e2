package hardware

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/picobldc"
)

// motorFullRange is the Pico-BLDC command for full speed.
const motorFullRange = 0x1000

// I2CController owns the motor controller.  Commands and readings pass
// through it so that only its loop touches the bus.
type I2CController struct {
	open   func() (picobldc.Interface, error)
	period time.Duration
	log    *slog.Logger

	lock sync.Mutex

	// Desired values.  Stored off in case we need to re-initialise the hardware.
	left, right int16

	// Accumulated rotations per side, positive forwards, and when they
	// were last read.
	rotations [2]float64
	readAt    time.Time
	offset    [2]float64
}

func NewI2CController(open func() (picobldc.Interface, error), period time.Duration) *I2CController {
	return &I2CController{
		open:   open,
		period: period,
		log:    log.For("i2c"),
	}
}

// SetMotorSpeeds takes side commands in [-127, 127].
func (c *I2CController) SetMotorSpeeds(left, right float64) {
	l := scaleMotorOutput(left/motion.MaxSpeed, motorFullRange)
	r := scaleMotorOutput(right/motion.MaxSpeed, motorFullRange)
	c.lock.Lock()
	c.left, c.right = l, r
	c.lock.Unlock()
}

// Rotations returns the wheel rotations of each side and the time they were
// read.  The time is zero until the first poll completes.
func (c *I2CController) Rotations() (left, right float64, at time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.rotations[0], c.rotations[1], c.readAt
}

func (c *I2CController) Loop(ctx context.Context, initDone *sync.WaitGroup) {
	c.log.Info("I2C loop started")
	for {
		c.loopUntilSomethingBadHappens(ctx, initDone)
		if ctx.Err() != nil {
			return
		}
		c.log.Error("I2C failure; trying to recover")
		initDone = nil
		time.Sleep(100 * time.Millisecond)
	}
}

func (c *I2CController) loopUntilSomethingBadHappens(ctx context.Context, initDone *sync.WaitGroup) {
	defer func() {
		if initDone != nil {
			initDone.Done()
		}
	}()

	pico, err := c.open()
	if err != nil {
		c.log.Error("failed to open motor controller", "error", err)
		return
	}
	defer func() {
		if err := pico.SetMotorSpeeds(0, 0, 0, 0); err != nil {
			c.log.Warn("failed to stop motors", "error", err)
		}
		_ = pico.Close()
	}()

	// A fresh tracker restarts from the counters' current values; carry the
	// accumulated distance across the reconnect.
	tracker := picobldc.NewDistanceTracker(pico)
	c.lock.Lock()
	c.offset = c.rotations
	c.lock.Unlock()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	first := true
	var lastL, lastR int16
	for ctx.Err() == nil {
		c.lock.Lock()
		l, r := c.left, c.right
		c.lock.Unlock()

		if first || lastL != l || lastR != r {
			// Right side motors are mounted mirrored.
			if err := pico.SetMotorSpeeds(l, -r, l, -r); err != nil {
				c.log.Error("failed to update motor speeds", "error", err)
				return
			}
			lastL, lastR = l, r
			first = false
		}

		if err := tracker.Poll(); err != nil {
			c.log.Error("failed to read motor distances", "error", err)
			return
		}
		c.record(tracker.AccumulatedRotations())

		if initDone != nil {
			initDone.Done()
			initDone = nil
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

func (c *I2CController) record(rot picobldc.PerMotorVal[float64]) {
	left := (rot[picobldc.MotorFrontLeft] + rot[picobldc.MotorBackLeft]) / 2
	right := -(rot[picobldc.MotorFrontRight] + rot[picobldc.MotorBackRight]) / 2
	c.lock.Lock()
	defer c.lock.Unlock()
	c.rotations = [2]float64{c.offset[0] + left, c.offset[1] + right}
	c.readAt = time.Now()
}

func scaleMotorOutput(value, multiplier float64) int16 {
	multiplied := value * multiplier
	if multiplied <= math.MinInt16 {
		return math.MinInt16
	}
	if multiplied >= math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(multiplied)
}
