package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/npmart/storefront/internal/config"
	"github.com/npmart/storefront/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app  *fiber.App
	cfg  config.Config
	done chan struct{}
	stop sync.Once
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development, in which case in-memory adapters
// back the API.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := NewApp(cfg)
	done := make(chan struct{})

	if err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Done: done}); err != nil {
		close(done)
		return nil, err
	}

	return &Server{app: app, cfg: cfg, done: done}, nil
}

// NewApp builds the bare Fiber application with the storefront defaults.
func NewApp(cfg config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: routes.ErrorHandler,
	})
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and the idle-state sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop.Do(func() { close(s.done) })
	return s.app.ShutdownWithContext(ctx)
}
