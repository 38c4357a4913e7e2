package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jemminiz/EZ-Template/pkg/joystick"
)

// joytests prints raw joystick events and the driver control each one maps
// to, for checking a controller's button layout.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = "/dev/input/js0"
	}
	firstLog := true
	var j *joystick.Joystick
	for ctx.Err() == nil {
		var err error
		j, err = joystick.NewJoystick(jDev)
		if err == nil {
			break
		}
		if firstLog {
			fmt.Printf("Waiting for joystick: %v.\n", err)
			firstLog = false
		}
		time.Sleep(1 * time.Second)
	}
	if j == nil {
		return
	}
	fmt.Printf("Opened joystick\n")

	events := make(chan *joystick.Event)
	go func() {
		err := j.LoopReadingEvents(ctx, events)
		fmt.Printf("Joystick stopped: %v\n", err)
	}()
	for ev := range events {
		fmt.Printf("%-16s %s\n", ev, describe(ev))
	}
}

func describe(ev *joystick.Event) string {
	if ev.Type == joystick.EventTypeButton {
		switch ev.Number {
		case joystick.ButtonX:
			return "X: toggle tuner"
		case joystick.ButtonA:
			return "A: increase"
		case joystick.ButtonY:
			return "Y: decrease"
		case joystick.ButtonB:
			return "B: hold with down to run auton"
		}
		return ""
	}
	switch ev.Number {
	case joystick.AxisLStickY:
		return "left side"
	case joystick.AxisRStickY:
		return "right side"
	case joystick.AxisDPadX:
		return "d-pad left/right: select"
	case joystick.AxisDPadY:
		return "d-pad up/down"
	}
	return ""
}
