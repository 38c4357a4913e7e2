// Package picobldc drives the Pico-BLDC four channel motor controller over
// I2C.  Channels 2 and 3 are the left side of the drivetrain, 0 and 1 the
// right.
package picobldc

import (
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"

	"github.com/jemminiz/EZ-Template/pkg/log"
)

const (
	PicoAddr = 0x42
)

type Register byte

const (
	RegCtrl Register = iota
	RegStatus
	RegWatchdogTimeout
	RegFaultCount

	RegMot0V
	RegMot1V
	RegMot2V
	RegMot3V

	RegMot0Calib
	RegMot1Calib
	RegMot2Calib
	RegMot3Calib

	RegBattV // LSB=4mV
	RegCurrent
	RegPower

	RegTemperature // LSB = 0.01C

	// Free running rotation counters, LSB = 1/256 rotation.
	RegMot0Dist
	RegMot1Dist
	RegMot2Dist
	RegMot3Dist
)

const (
	BattVLSB       = 0.004
	CurrentLSB     = 0.0001831054688
	PowerLSB       = CurrentLSB * 20
	TemperatureLSB = 0.01
)

const (
	RegCtrlEnableI2CControl uint16 = 1 << iota
	RegCtrlRun
	RegCtrlDoCalib
	RegCtrlReset
	RegCtrlWatchdogEnable
)

type StatusFlag uint16

const (
	RegStatusFault StatusFlag = 1 << iota
	RegStatusCalibDone
	RegStatusWatchdogExpired
)

// Motor channels in register order.
const (
	MotorBackRight = iota
	MotorFrontRight
	MotorFrontLeft
	MotorBackLeft
)

// PerMotorVal holds one value per motor channel, indexed by the Motor
// constants.
type PerMotorVal[T any] [4]T

// ErrWriteFailed is returned once every retry of a register write has failed.
var ErrWriteFailed = errors.New("failed to write to Pico-BLDC")

type Interface interface {
	SetMotorSpeeds(frontLeft, frontRight, backLeft, backRight int16) error
	RawDistancesTraveled() (PerMotorVal[int16], error)
	Close() error
}

type PicoBLDC struct {
	bus *i2c.Devfs
	dev *i2c.Device
	log *slog.Logger

	lastConfigWord  uint16
	lastConfigTime  time.Time
	watchdogEnabled bool
}

func New(bus string) (*PicoBLDC, error) {
	devfs := &i2c.Devfs{Dev: bus}
	dev, err := i2c.Open(devfs, PicoAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening Pico-BLDC on %s", bus)
	}
	return &PicoBLDC{
		bus: devfs,
		dev: dev,
		log: log.For("picobldc"),
	}, nil
}

var _ Interface = (*PicoBLDC)(nil)

func (p *PicoBLDC) Reset() error {
	return p.maybeConfigure(true, false)
}

func (p *PicoBLDC) SetWatchdog(timeout time.Duration) error {
	if timeout == 0 {
		p.watchdogEnabled = false
		return p.maybeConfigure(false, false)
	}

	ms := timeout.Milliseconds()
	if ms > math.MaxUint16 {
		ms = math.MaxUint16
	}
	if err := p.writeReg(RegWatchdogTimeout, uint16(ms)); err != nil {
		return err
	}

	p.watchdogEnabled = true
	return p.maybeConfigure(false, false)
}

func (p *PicoBLDC) SetMotorSpeeds(frontLeft, frontRight, backLeft, backRight int16) error {
	if err := p.maybeConfigure(false, true); err != nil {
		return err
	}
	if err := p.writeReg(RegMot0V, uint16(backRight)); err != nil {
		return err
	}
	if err := p.writeReg(RegMot1V, uint16(frontRight)); err != nil {
		return err
	}
	if err := p.writeReg(RegMot2V, uint16(frontLeft)); err != nil {
		return err
	}
	return p.writeReg(RegMot3V, uint16(backLeft))
}

// RawDistancesTraveled reads the wrapping rotation counter of each motor.
func (p *PicoBLDC) RawDistancesTraveled() (PerMotorVal[int16], error) {
	var out PerMotorVal[int16]
	for m := range out {
		raw, err := p.readReg(RegMot0Dist + Register(m))
		if err != nil {
			return out, errors.Wrapf(err, "reading motor %d distance", m)
		}
		out[m] = int16(raw)
	}
	return out, nil
}

func (p *PicoBLDC) Close() error {
	_ = p.Reset()
	return p.dev.Close()
}

func (p *PicoBLDC) writeWithRetries(data []byte) error {
	var err error
	for tries := 0; tries < 20; tries++ {
		err = p.dev.Write(data)
		if err == nil {
			if tries > 0 {
				p.log.Info("wrote to Pico-BLDC after retries", "tries", tries)
			}
			return nil
		}
		p.log.Warn("failed to write to Pico-BLDC", "error", err)
		time.Sleep(1 * time.Millisecond)
		_ = p.dev.Close()
		dev, openErr := i2c.Open(p.bus, PicoAddr)
		if openErr != nil {
			continue
		}
		p.dev = dev
	}
	return errors.Wrapf(ErrWriteFailed, "last error: %v", err)
}

func (p *PicoBLDC) maybeConfigure(resetMotorSpeeds bool, enableMotors bool) error {
	var configWord uint16 = RegCtrlEnableI2CControl
	if resetMotorSpeeds {
		configWord |= RegCtrlReset
	}
	if enableMotors {
		configWord |= RegCtrlRun
	}
	if p.watchdogEnabled {
		configWord |= RegCtrlWatchdogEnable
	}

	if configWord == p.lastConfigWord && time.Since(p.lastConfigTime) < 100*time.Millisecond {
		return nil
	}

	if p.lastConfigWord == 0 {
		calib, err := p.readReg(RegMot3Calib)
		if err != nil {
			return err
		}
		if calib == 0 {
			// Needs the robot up on blocks.
			p.log.Warn("Pico-BLDC not calibrated, running calibration")
			configWord |= RegCtrlDoCalib
		}
	}

	if err := p.writeReg(RegCtrl, configWord); err != nil {
		return err
	}

	if configWord&RegCtrlDoCalib != 0 {
		if err := p.waitForCalibration(); err != nil {
			return err
		}
	}

	if err := p.writeReg(RegStatus, uint16(RegStatusCalibDone)); err != nil {
		return err
	}

	p.lastConfigTime = time.Now()
	p.lastConfigWord = configWord & (^RegCtrlReset) /* Reset flag is not persistent */
	return nil
}

func (p *PicoBLDC) waitForCalibration() error {
	var lastPrint time.Time
	for {
		status, err := p.readReg(RegStatus)
		if err != nil {
			p.log.Warn("failed to read status register", "error", err)
		}
		if status&uint16(RegStatusCalibDone) != 0 {
			break
		}
		if time.Since(lastPrint) > time.Second {
			p.log.Info("waiting for calibration", "status", status)
			lastPrint = time.Now()
		}
		time.Sleep(10 * time.Millisecond)
	}

	var words []uint16
	for r := RegMot0Calib; r <= RegMot3Calib; r++ {
		v, err := p.readReg(r)
		if err != nil {
			return err
		}
		words = append(words, v)
	}
	p.log.Info("calibration done", "words", words)
	return nil
}

func (p *PicoBLDC) BattVolts() (float32, error) {
	raw, err := p.readReg(RegBattV)
	if err != nil {
		return 0, err
	}
	return float32(raw) * BattVLSB, nil
}

func (p *PicoBLDC) CurrentAmps() (float32, error) {
	raw, err := p.readReg(RegCurrent)
	if err != nil {
		return 0, err
	}
	return float32(raw) * CurrentLSB, nil
}

func (p *PicoBLDC) PowerWatts() (float32, error) {
	raw, err := p.readReg(RegPower)
	if err != nil {
		return 0, err
	}
	return float32(raw) * PowerLSB, nil
}

func (p *PicoBLDC) TemperatureC() (float32, error) {
	raw, err := p.readReg(RegTemperature)
	if err != nil {
		return 0, err
	}
	return float32(raw) * TemperatureLSB, nil
}

func (p *PicoBLDC) Status() (StatusFlag, error) {
	raw, err := p.readReg(RegStatus)
	if err != nil {
		return 0, err
	}
	return StatusFlag(raw), nil
}

func (p *PicoBLDC) writeReg(reg Register, value uint16) error {
	return p.writeWithRetries([]byte{byte(reg), byte(value >> 8), byte(value)})
}

func (p *PicoBLDC) readReg(reg Register) (uint16, error) {
	var buf [2]byte
	if err := p.dev.ReadReg(byte(reg), buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// Dummy returns a controller that only logs.
func Dummy() Interface {
	return &dummyPico{log: log.For("picobldc")}
}

type dummyPico struct {
	log *slog.Logger
}

func (p *dummyPico) RawDistancesTraveled() (PerMotorVal[int16], error) {
	return PerMotorVal[int16]{}, nil
}

func (p *dummyPico) SetMotorSpeeds(frontLeft, frontRight, backLeft, backRight int16) error {
	p.log.Debug("dummy motors", "left", frontLeft, "right", frontRight)
	return nil
}

func (p *dummyPico) Close() error {
	return nil
}
