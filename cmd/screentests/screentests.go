package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jemminiz/EZ-Template/pkg/screen"
)

// screentests draws a sample overlay on the framebuffer until interrupted.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dev := "/dev/fb1"
	if len(os.Args) > 1 {
		dev = os.Args[1]
	}
	start := time.Now()
	screen.LoopUpdatingScreen(ctx, dev, func() []string {
		return []string{
			"screen test",
			fmt.Sprintf("up %.1fs", time.Since(start).Seconds()),
			"x: 0.00 y: 0.00 a: 0.00",
			"l tracker: --",
		}
	})
}
