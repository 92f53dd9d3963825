// Package server exposes the game-building engine over HTTP.
package server

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"gamesmith/logger"
	"gamesmith/metrics"
)

// Config holds configuration for the HTTP server.
type Config struct {
	ListenAddr  string
	CORSOrigins string
}

// Server is the Fiber application wrapping the engine.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   logger.Logger
	config   Config
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg Config, engine GameEngine, m *metrics.Metrics, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNullLogger()
	}
	if m == nil {
		m = metrics.New()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(l),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             16 * 1024 * 1024,
	})

	handlers := NewHandlers(engine, m, l)
	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   l.WithField("component", "server"),
		config:   cfg,
	}

	s.setupMiddleware(cfg, m)
	s.setupRoutes(handlers, m)
	return s
}

func (s *Server) setupMiddleware(cfg Config, m *metrics.Metrics) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	// Request logging plus per-route counters
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		start := time.Now()
		err := c.Next()
		if path == "/metrics" || path == "/" {
			return err
		}
		status := c.Response().StatusCode()
		m.RecordRequest(c.Route().Path, strconv.Itoa(status))
		m.RequestDuration.WithLabelValues(c.Route().Path).Observe(time.Since(start).Seconds())
		s.logger.
			WithField("method", c.Method()).
			WithField("path", path).
			WithField("status", status).
			WithField("request_id", c.Locals("request_id")).
			Info("request")
		return err
	})
}

func (s *Server) setupRoutes(h *Handlers, m *metrics.Metrics) {
	s.app.Get("/", h.Health)
	s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	s.app.Post("/process-code", h.ProcessCode)
	s.app.Post("/category", h.Category)
	s.app.Post("/answer", h.Answer)
	s.app.Post("/restore-version", h.RestoreVersion)
	s.app.Post("/revert", h.Revert)
	s.app.Get("/snapshot-log", h.SnapshotLog)
	s.app.Get("/current-version", h.CurrentVersion)
	s.app.Get("/load-chat", h.LoadChat)
	s.app.Get("/spec", h.Spec)
	s.app.Get("/game-data", h.GameData)
	s.app.Get("/game_data", h.GameData) // legacy spelling kept for older clients
	s.app.Post("/data-update", h.DataUpdate)
	s.app.Post("/qna", h.QnA)
	s.app.Post("/spec-question", h.SpecQuestion)
	s.app.Get("/assets", h.Assets)
	s.app.Get("/static/:game_name/:file", h.StaticAsset)
	s.app.Post("/replace-asset", h.ReplaceAsset)
	s.app.Post("/client-error", h.ClientError)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8000"
	}
	s.logger.WithField("addr", addr).Info("server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(l logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		l.
			WithField("error", err).
			WithField("status", code).
			WithField("path", c.Path()).
			Error("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}
		return c.Status(code).JSON(failure(detail))
	}
}
