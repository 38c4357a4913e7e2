package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/alecthomas/kong"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/auton"
	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/executor"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/screen"
	"github.com/jemminiz/EZ-Template/pkg/sim"
	"github.com/jemminiz/EZ-Template/pkg/tuner"
)

var CLI struct {
	Routine       string        `arg:"" optional:"" help:"Routine to run; all of them if omitted."`
	List          bool          `help:"List the routines and exit."`
	Config        string        `help:"Chassis configuration file; defaults if omitted." type:"path"`
	LogLevel      string        `help:"Log level." default:"warn" enum:"debug,info,warn,error"`
	Plot          string        `help:"Write the driven path to this image file (png, svg or pdf)." type:"path"`
	Overlay       string        `help:"Write the final tuning overlay to this PNG file." type:"path"`
	Wall          float64       `help:"Put a wall across the field at this X (inches); 0 for none."`
	Perpendicular bool          `help:"Fit the perpendicular tracking wheel."`
	Timeout       time.Duration `help:"Give up on a routine after this much wall time." default:"30s"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("autonsim"),
		kong.Description("Runs autonomous routines against the simulated drivetrain."),
	)
	log.Init(CLI.LogLevel)
	kctx.FatalIfErrorf(run())
}

func run() error {
	selector := auton.NewSelector(auton.Examples()...)
	if CLI.List {
		for _, e := range selector.Entries() {
			fmt.Printf("%-28s %s\n", e.Name, e.Description)
		}
		return nil
	}

	cfg := chassis.DefaultConfig()
	if CLI.Config != "" {
		var err error
		if cfg, err = chassis.LoadConfig(CLI.Config); err != nil {
			return err
		}
	}
	if CLI.Perpendicular {
		cfg.Trackers.Perpendicular.Enabled = true
	}

	entries := selector.Entries()
	if CLI.Routine != "" {
		e, err := selector.Select(CLI.Routine)
		if err != nil {
			return err
		}
		entries = []auton.Entry{e}
	}

	var failed int
	for _, entry := range entries {
		if err := runOne(cfg, entry, len(entries) == 1); err != nil {
			fmt.Printf("  error: %v\n", err)
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d routines failed", failed, len(entries))
	}
	return nil
}

func runOne(cfg chassis.Config, entry auton.Entry, single bool) error {
	var opts []sim.Option
	if CLI.Wall != 0 {
		wall := CLI.Wall
		opts = append(opts, sim.WithObstacle(func(p odom.Pose) bool {
			if wall > 0 {
				return p.X > wall
			}
			return p.X < wall
		}))
	}
	plant := sim.New(cfg, opts...)
	exec := executor.New(cfg, plant, plant)

	ctx, cancel := context.WithTimeout(context.Background(), CLI.Timeout)
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go exec.Spin(ctx, &wg)
	defer wg.Wait()
	defer cancel()

	fmt.Printf("%s\n", entry.Name)
	err := auton.Autonomous(ctx, exec, entry.Routine)

	snap := exec.Snapshot()
	simulated := time.Duration(snap.Ticks) * exec.Period()
	fmt.Printf("  simulated time: %v\n", simulated)
	fmt.Printf("  estimated pose: %v\n", snap.Pose)
	fmt.Printf("  true pose:      %v\n", plant.Pose())
	if snap.Last != nil {
		fmt.Printf("  last motion:    %v\n", *snap.Last)
	}
	if snap.Interfered {
		fmt.Printf("  interfered\n")
	}

	if CLI.Plot != "" {
		file := CLI.Plot
		if !single {
			file = suffixed(file, entry.Name)
		}
		if perr := sim.SavePlot(file, entry.Name, plant.Path(), nil); perr != nil {
			return perr
		}
	}
	if CLI.Overlay != "" {
		file := CLI.Overlay
		if !single {
			file = suffixed(file, entry.Name)
		}
		if perr := gg.SavePNG(file, screen.Render(tuner.New(exec).Lines())); perr != nil {
			return perr
		}
	}
	return err
}

// suffixed turns "out.png" and "Drive and Turn, slow" into
// "out-drive-and-turn-slow.png".
func suffixed(file, name string) string {
	ext := filepath.Ext(file)
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.TrimSuffix(file, ext) + "-" + strings.Join(words, "-") + ext
}
