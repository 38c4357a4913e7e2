package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/auton"
	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/executor"
	"github.com/jemminiz/EZ-Template/pkg/hardware"
	"github.com/jemminiz/EZ-Template/pkg/joystick"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/screen"
	"github.com/jemminiz/EZ-Template/pkg/sound"
	"github.com/jemminiz/EZ-Template/pkg/telemetry"
	"github.com/jemminiz/EZ-Template/pkg/tuner"
)

var CLI struct {
	Config      string        `help:"Chassis configuration file." default:"/cfg/chassis.yaml" env:"CHASSIS_CONFIG" type:"path"`
	WriteConfig string        `help:"Write the configuration in use to this file and continue." type:"path"`
	LogLevel    string        `help:"Log level." default:"info" enum:"debug,info,warn,error"`
	Listen      string        `help:"Telemetry listen address; empty to disable." default:":8080"`
	Interval    time.Duration `help:"Telemetry websocket interval." default:"100ms"`
	Joystick    string        `help:"Joystick device; devices.joystick from the configuration if unset." env:"JOYSTICK_DEVICE"`
	Dummy       bool          `help:"Simulate the drivetrain instead of opening hardware." env:"IGNORE_MISSING_HARDWARE"`
	Routine     string        `help:"Routine to select at start."`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("chassisd"),
		kong.Description("Runs the chassis: control loop, driver controls, autonomous and telemetry."),
	)
	log.Init(CLI.LogLevel)
	logger := log.For("main")
	logger.Info("---- chassisd ----", "gomaxprocs", runtime.GOMAXPROCS(0))

	if err := run(logger); err != nil {
		logger.Error("chassisd failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := chassis.LoadConfig(CLI.Config)
	if err != nil {
		return err
	}
	if CLI.WriteConfig != "" {
		if err := chassis.WriteConfig(CLI.WriteConfig, cfg); err != nil {
			return err
		}
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		logger.Info("signal received", "signal", s)
		cancel()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	hw, err := openHardware(ctx, cfg)
	if err != nil {
		return err
	}
	defer hw.Shutdown()

	exec := executor.New(cfg, hw, hw)
	var wg sync.WaitGroup
	wg.Add(1)
	go exec.Loop(ctx, &wg)
	defer wg.Wait()
	defer cancel()

	tune := tuner.New(exec)
	selector := auton.NewSelector(auton.Examples()...)
	if CLI.Routine != "" {
		if _, err := selector.Select(CLI.Routine); err != nil {
			return err
		}
	}
	lines := func() []string {
		if tune.Enabled() {
			return tune.Lines()
		}
		return append(selector.Lines(), tune.Lines()...)
	}

	go screen.LoopUpdatingScreen(ctx, cfg.Devices.Screen, lines)

	if CLI.Listen != "" {
		srv := telemetry.NewServer(exec)
		srv.Overlay = lines
		go func() {
			if err := srv.Run(ctx, CLI.Listen, CLI.Interval); err != nil {
				logger.Error("telemetry server failed", "error", err)
			}
		}()
	}

	runAuton := func(ctx context.Context) error {
		err := selector.Run(ctx, exec)
		if exec.Interfered() {
			hw.PlaySound(sound.CueBlocked)
		}
		return err
	}
	operator := joystick.NewOperator(exec, tune, selector, runAuton, hw.PlaySound)

	events, err := openJoystick(ctx, joystickDevice(CLI.Joystick, cfg), logger)
	if err != nil {
		logger.Warn("no joystick; waiting for shutdown", "error", err)
		<-ctx.Done()
		return nil
	}
	operator.Loop(ctx, events)
	logger.Info("shutting down")
	return nil
}

func openHardware(ctx context.Context, cfg chassis.Config) (hardware.Interface, error) {
	if CLI.Dummy {
		hw := hardware.NewDummy(cfg)
		return hw, hw.Start(ctx)
	}
	hw := hardware.New(cfg)
	if err := hw.Start(ctx); err != nil {
		hw.Shutdown()
		return nil, errors.Wrap(err, "starting hardware (set IGNORE_MISSING_HARDWARE=true to simulate)")
	}
	return hw, nil
}

func joystickDevice(flag string, cfg chassis.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Devices.Joystick
}

// openJoystick tries the device once a second for up to 30s.
func openJoystick(ctx context.Context, device string, logger *slog.Logger) (<-chan *joystick.Event, error) {
	logger = logger.With("device", device)
	var lastErr error
	for attempt := 0; attempt < 30 && ctx.Err() == nil; attempt++ {
		j, err := joystick.NewJoystick(device)
		if err != nil {
			lastErr = err
			logger.Warn("failed to open joystick", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}
		events := make(chan *joystick.Event)
		go func() {
			_ = j.LoopReadingEvents(ctx, events)
		}()
		return events, nil
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, lastErr
}
