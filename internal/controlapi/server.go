// Package controlapi is the operator-facing control plane: health, metrics,
// position listing, and manual pause/resume/flatten/close endpoints, served
// over the teacher's fiber HTTP stack. It replaces the teacher's Telegram
// signal-intake server (internal/signal), which fronted a different input
// modality (manually-typed call alerts) that has no place once candidates
// arrive from the on-chain firehose instead.
package controlapi

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/raysnipe/sniper/internal/autopause"
	"github.com/raysnipe/sniper/internal/health"
	"github.com/raysnipe/sniper/internal/metrics"
	"github.com/raysnipe/sniper/internal/position"
	"github.com/raysnipe/sniper/internal/tuner"
)

// Deps are the components the control API exposes or mutates. Any field
// may be nil in which case its endpoints are disabled.
type Deps struct {
	Positions *position.Manager
	AutoPause *autopause.Manager
	Tuner     *tuner.Tuner
	Metrics   *metrics.Registry
	Health    *health.Checker
}

// Server runs the control plane HTTP server.
type Server struct {
	app  *fiber.App
	deps Deps
	host string
	port int
}

// NewServer builds the control API's fiber app and routes.
func NewServer(host string, port int, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})

	s := &Server{app: app, deps: deps, host: host, port: port}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)

	if s.deps.Metrics != nil {
		handler := promhttp.HandlerFor(s.deps.Metrics.Gatherer(), promhttp.HandlerOpts{})
		s.app.Get("/metrics", adaptor.HTTPHandler(handler))
	}

	if s.deps.Positions != nil {
		s.app.Get("/positions", s.handleListPositions)
		s.app.Post("/positions/:id/close", s.handleClosePosition)
		s.app.Post("/flatten", s.handleFlatten)
	}

	if s.deps.AutoPause != nil {
		s.app.Get("/pause", s.handleGetPauseStatus)
		s.app.Post("/pause", s.handleManualPause)
		s.app.Post("/resume", s.handleManualResume)
	}

	if s.deps.Tuner != nil {
		s.app.Get("/fee", s.handleFeeStats)
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status": "ok",
		"time":   time.Now().Unix(),
	}
	if s.deps.Health != nil {
		checks := s.deps.Health.GetStatuses()
		resp["checks"] = checks
		for _, chk := range checks {
			if !chk.Healthy {
				resp["status"] = "degraded"
				break
			}
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleListPositions(c *fiber.Ctx) error {
	return c.JSON(s.deps.Positions.ListOpen())
}

func (s *Server) handleClosePosition(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.deps.Positions.ClosePosition(c.Context(), id, position.ExitManual); err != nil {
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "closing", "id": id})
}

func (s *Server) handleFlatten(c *fiber.Ctx) error {
	log.Warn().Msg("manual flatten-all requested via control API")
	s.deps.Positions.FlattenAll(c.Context())
	return c.JSON(fiber.Map{"status": "flattening", "count": s.deps.Positions.Count()})
}

func (s *Server) handleGetPauseStatus(c *fiber.Ctx) error {
	return c.JSON(s.deps.AutoPause.GetStatus())
}

type manualPauseRequest struct {
	Reason      string `json:"reason"`
	DurationSec int    `json:"duration_sec"`
}

func (s *Server) handleManualPause(c *fiber.Ctx) error {
	var req manualPauseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
		}
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	duration := time.Duration(req.DurationSec) * time.Second
	if duration <= 0 {
		duration = time.Hour
	}
	s.deps.AutoPause.ManualPause(req.Reason, duration)
	log.Warn().Str("reason", req.Reason).Dur("duration", duration).Msg("manual pause requested via control API")
	return c.JSON(fiber.Map{"status": "paused"})
}

func (s *Server) handleManualResume(c *fiber.Ctx) error {
	if !s.deps.AutoPause.ManualResume() {
		return c.Status(409).JSON(fiber.Map{"error": "not paused"})
	}
	return c.JSON(fiber.Map{"status": "resumed"})
}

func (s *Server) handleFeeStats(c *fiber.Ctx) error {
	return c.JSON(s.deps.Tuner.Snapshot())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Info().Str("addr", addr).Msg("starting control API")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
