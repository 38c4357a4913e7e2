package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/picobldc"
)

var CLI struct {
	Bus      string        `help:"I2C bus." default:"/dev/i2c-1"`
	Left     int16         `help:"Left side motor command." default:"400"`
	Right    int16         `help:"Right side motor command." default:"400"`
	Duration time.Duration `help:"How long to run the motors." default:"5s"`
	Wheel    float64       `help:"Drive wheel diameter in inches, for distance." default:"4.125"`
}

func main() {
	kctx := kong.Parse(&CLI, kong.Description("Pico-BLDC bench test: runs the motors and prints power and distance."))
	log.Init("info")
	fmt.Println("Pico-BLDC test program")

	pico, err := picobldc.New(CLI.Bus)
	kctx.FatalIfErrorf(err)
	defer pico.Close()

	fmt.Println("Created PicoBLDC object. Enabling watchdog...")
	kctx.FatalIfErrorf(pico.SetWatchdog(time.Second))
	fmt.Println("Watchdog enabled.")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, CLI.Duration)
	defer cancel()

	circumference := chassis.Drive{WheelDiameter: CLI.Wheel}.WheelCircumference()
	tracker := picobldc.NewDistanceTracker(pico)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for ctx.Err() == nil {
		// Right side motors are mirrored.
		err := pico.SetMotorSpeeds(CLI.Left, -CLI.Right, CLI.Left, -CLI.Right)
		kctx.FatalIfErrorf(err)
		kctx.FatalIfErrorf(tracker.Poll())

		battV, _ := pico.BattVolts()
		current, _ := pico.CurrentAmps()
		power, _ := pico.PowerWatts()
		tempC, _ := pico.TemperatureC()
		status, _ := pico.Status()
		rot := tracker.AccumulatedRotations()
		fmt.Printf("%.1fC %.2fV %.3fA %.3fW Status=%x\n", tempC, battV, current, power, status)
		for m, r := range rot {
			fmt.Printf("  motor %d: %7.2f rot %7.2f in\n", m, r, r*circumference)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	kctx.FatalIfErrorf(pico.SetMotorSpeeds(0, 0, 0, 0))
}
