package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
)

// Server is the API server for inspecting recorded red-team runs.
type Server struct {
	config Config
	mem    memory.Driver
	log    *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The memory driver is injected to allow sharing with other components
// (e.g., an orchestrator running in the same process).
func NewServer(config Config, mem memory.Driver, log *slog.Logger) (*Server, error) {
	if mem == nil {
		return nil, errors.New("memory driver is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		mem:    mem,
		log:    log,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/stats", s.handleStats)
	app.Get("/conversations", s.handleListConversations)
	app.Get("/conversations/:id", s.handleGetConversation)
	app.Get("/pieces/:id/scores", s.handlePieceScores)
	app.Get("/search", s.handleSearch)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.log.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
