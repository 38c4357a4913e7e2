package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jemminiz/EZ-Template/pkg/angle"
	"github.com/jemminiz/EZ-Template/pkg/bno08x"
	"github.com/jemminiz/EZ-Template/pkg/log"
)

// imutests prints IMU reports with the continuous heading the chassis would
// see, and the drift since start, for checking a mounted IMU.
func main() {
	log.Init("info")
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dev := bno08x.DefaultDevice
	if len(os.Args) > 1 {
		dev = os.Args[1]
	}
	imu := bno08x.New(dev)
	go imu.LoopReadingReports(ctx)

	rep, err := imu.WaitForReportAfter(ctx, time.Now())
	if err != nil {
		fmt.Println("No IMU reports:", err)
		return
	}
	var unwrap angle.Unwrapper
	start := unwrap.Update(rep.YawDegrees())
	began := time.Now()
	for ctx.Err() == nil {
		rep, err = imu.WaitForReportAfter(ctx, rep.Time)
		if err != nil {
			return
		}
		heading := unwrap.Update(rep.YawDegrees())
		if rep.Index%25 == 0 {
			elapsed := time.Since(began)
			fmt.Printf("%v\n", rep)
			fmt.Printf("Heading: %.2f  since start: %.2f  drift/min: %.3f\n",
				heading, heading-start, (heading-start)/elapsed.Minutes())
		}
	}
}
