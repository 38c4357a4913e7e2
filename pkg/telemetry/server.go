// Package telemetry serves the chassis state over HTTP and a websocket feed
// for the pit laptop.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/executor"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
)

// Chassis is the part of the executor the server exposes.
type Chassis interface {
	Snapshot() executor.Snapshot
	Pose() odom.Pose
	TrackerReadings() []chassis.TrackerReading
	Constants() motion.Constants
	SetConstants(c motion.Constants) error
	Abort()
}

type Server struct {
	app     *fiber.App
	chassis Chassis
	hub     *hub
	log     *slog.Logger

	// Overlay, when set, supplies the tuning overlay text for /api/overlay.
	Overlay func() []string
}

func NewServer(c Chassis) *Server {
	s := &Server{
		chassis: c,
		log:     log.For("telemetry"),
	}
	s.hub = newHub(s.log)

	app := fiber.New(fiber.Config{
		AppName:               "chassis telemetry",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/pose", s.handlePose)
	api.Get("/trackers", s.handleTrackers)
	api.Get("/state", s.handleState)
	api.Get("/constants", s.handleGetConstants)
	api.Put("/constants", s.handlePutConstants)
	api.Post("/abort", s.handleAbort)
	api.Get("/overlay", s.handleOverlay)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(func(conn *websocket.Conn) {
		s.hub.serve(newClient(conn))
	}))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on addr and publishes a snapshot to websocket clients every
// interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string, interval time.Duration) error {
	go s.hub.run(ctx)
	go s.publish(ctx, interval)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(time.Second); err != nil {
			s.log.Warn("telemetry shutdown", "error", err)
		}
	}()

	s.log.Info("telemetry listening", "addr", addr)
	if err := s.app.Listen(addr); err != nil {
		return errors.Wrap(err, "telemetry server")
	}
	return nil
}

func (s *Server) publish(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.clientCount() == 0 {
				continue
			}
			frame, err := json.Marshal(s.chassis.Snapshot())
			if err != nil {
				s.log.Error("encoding snapshot", "error", err)
				continue
			}
			s.hub.publish(frame)
		}
	}
}

func (s *Server) handlePose(c *fiber.Ctx) error {
	return c.JSON(s.chassis.Pose())
}

func (s *Server) handleTrackers(c *fiber.Ctx) error {
	return c.JSON(s.chassis.TrackerReadings())
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.chassis.Snapshot())
}

func (s *Server) handleGetConstants(c *fiber.Ctx) error {
	return c.JSON(s.chassis.Constants())
}

func (s *Server) handlePutConstants(c *fiber.Ctx) error {
	// Start from the live constants so a partial body only changes what it
	// names.
	consts := s.chassis.Constants()
	if err := json.Unmarshal(c.Body(), &consts); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	err := s.chassis.SetConstants(consts)
	switch {
	case errors.Is(err, executor.ErrMotionActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.log.Info("constants updated over http", "remote", c.IP())
	return c.JSON(consts)
}

func (s *Server) handleAbort(c *fiber.Ctx) error {
	s.chassis.Abort()
	s.log.Warn("motion aborted over http", "remote", c.IP())
	return c.JSON(s.chassis.Snapshot())
}

func (s *Server) handleOverlay(c *fiber.Ctx) error {
	if s.Overlay == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(fiber.Map{"lines": s.Overlay()})
}
