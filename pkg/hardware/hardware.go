// Package hardware binds the motor controller, IMU and tracking wheel
// encoders to the chassis interfaces.
package hardware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/angle"
	"github.com/jemminiz/EZ-Template/pkg/bno08x"
	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/picobldc"
	"github.com/jemminiz/EZ-Template/pkg/quadrature"
	"github.com/jemminiz/EZ-Template/pkg/sound"
)

// Readings older than this are reported as unavailable.
const staleAfter = 100 * time.Millisecond

const motorWatchdog = 250 * time.Millisecond

type motorControl interface {
	SetMotorSpeeds(left, right float64)
	Rotations() (left, right float64, at time.Time)
}

type imuReports interface {
	CurrentReport() bno08x.IMUReport
}

type counter interface {
	Count() int64
}

type Hardware struct {
	cfg chassis.Config
	log *slog.Logger

	i2c      *I2CController
	bno      *bno08x.BNO08X
	motors   motorControl
	imu      imuReports
	trackers [3]counter

	soundsToPlay chan string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	lock    sync.Mutex
	command [2]float64
	unwrap  angle.Unwrapper
	now     func() time.Time
}

func New(cfg chassis.Config) *Hardware {
	bus := cfg.Devices.I2CBus
	i2c := NewI2CController(func() (picobldc.Interface, error) {
		p, err := picobldc.New(bus)
		if err != nil {
			return nil, err
		}
		if err := p.SetWatchdog(motorWatchdog); err != nil {
			_ = p.Close()
			return nil, errors.Wrap(err, "enabling watchdog")
		}
		return p, nil
	}, cfg.Period)
	bno := bno08x.New(cfg.Devices.IMUSerial)
	h := &Hardware{
		cfg:          cfg,
		log:          log.For("hardware"),
		i2c:          i2c,
		bno:          bno,
		motors:       i2c,
		imu:          bno,
		soundsToPlay: sound.InitSound(),
		now:          time.Now,
	}
	return h
}

var _ Interface = (*Hardware)(nil)

// Start opens the tracking wheel encoders and starts the I2C and IMU loops.
// It returns once the motor controller has been tried for the first time.
func (h *Hardware) Start(ctx context.Context) error {
	pins := [3][2]string{
		h.cfg.Devices.LeftTrackerPins,
		h.cfg.Devices.RightTrackerPins,
		h.cfg.Devices.PerpendicularTrackerPins,
	}
	enabled := [3]bool{
		h.cfg.Trackers.Left.Enabled,
		h.cfg.Trackers.Right.Enabled,
		h.cfg.Trackers.Perpendicular.Enabled,
	}
	var encoders []*quadrature.Encoder
	for i := range pins {
		if !enabled[i] {
			continue
		}
		enc, err := quadrature.Open(pins[i])
		if err != nil {
			return errors.Wrapf(err, "opening %s tracker", odom.Source(i))
		}
		h.trackers[i] = enc
		encoders = append(encoders, enc)
	}

	ctx, h.cancel = context.WithCancel(ctx)
	for _, enc := range encoders {
		h.wg.Add(1)
		go enc.Loop(ctx, &h.wg)
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.bno.LoopReadingReports(ctx)
	}()

	var initDone sync.WaitGroup
	initDone.Add(1)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.i2c.Loop(ctx, &initDone)
	}()
	initDone.Wait()
	h.log.Info("hardware started", "trackers", len(encoders))
	return nil
}

func (h *Hardware) SetVelocity(side chassis.Side, value float64) error {
	if side != chassis.Left && side != chassis.Right {
		return errors.Errorf("unknown side %v", side)
	}
	h.lock.Lock()
	h.command[side] = value
	left, right := h.command[0], h.command[1]
	h.lock.Unlock()
	h.motors.SetMotorSpeeds(left, right)
	return nil
}

// Sample reads the latest values cached by the hardware loops.
func (h *Hardware) Sample() odom.Sample {
	h.lock.Lock()
	defer h.lock.Unlock()
	now := h.now()

	out := odom.Sample{
		Left:          odom.Absent(),
		Right:         odom.Absent(),
		Perpendicular: odom.Absent(),
		Heading:       odom.Absent(),
	}

	left, right, at := h.motors.Rotations()
	drive := [2]odom.Reading{odom.Absent(), odom.Absent()}
	if !at.IsZero() && now.Sub(at) < staleAfter {
		c := h.cfg.Drive.WheelCircumference()
		drive = [2]odom.Reading{odom.Present(left * c), odom.Present(right * c)}
	}
	out.Left = h.trackerOr(odom.SourceLeft, h.cfg.Trackers.Left, drive[0])
	out.Right = h.trackerOr(odom.SourceRight, h.cfg.Trackers.Right, drive[1])
	out.Perpendicular = h.trackerOr(odom.SourcePerpendicular, h.cfg.Trackers.Perpendicular, odom.Absent())

	report := h.imu.CurrentReport()
	if !report.Time.IsZero() && now.Sub(report.Time) < staleAfter {
		out.Heading = odom.Present(h.unwrap.Update(report.YawDegrees()))
	}
	return out
}

func (h *Hardware) trackerOr(s odom.Source, t chassis.Tracker, fallback odom.Reading) odom.Reading {
	if !t.Enabled {
		return fallback
	}
	enc := h.trackers[s]
	if enc == nil || h.cfg.Devices.TrackerCountsPerRev <= 0 {
		return odom.Absent()
	}
	d := float64(enc.Count()) / h.cfg.Devices.TrackerCountsPerRev * t.Circumference()
	if t.Reversed {
		d = -d
	}
	return odom.Present(d)
}

// PlaySound queues a cue without blocking the caller for long.
func (h *Hardware) PlaySound(cue string) {
	defer func() {
		recover() // Don't die if the channel is already closed.
	}()
	path := sound.CuePath(h.cfg.Devices.SoundsDir, cue)
	select {
	case h.soundsToPlay <- path:
	case <-time.After(10 * time.Millisecond):
		h.log.Debug("timed out trying to play sound", "path", path)
	}
}

// Shutdown stops the motors and waits for the hardware loops to exit.
func (h *Hardware) Shutdown() {
	h.log.Info("stopping hardware")
	h.motors.SetMotorSpeeds(0, 0)
	time.Sleep(30 * time.Millisecond)
	if h.cancel != nil {
		h.cancel()
		h.wg.Wait()
	}
	close(h.soundsToPlay)
}
