package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/npmart/storefront/internal/config"
	"github.com/npmart/storefront/internal/locale"
	"github.com/npmart/storefront/internal/middleware"
	"github.com/npmart/storefront/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Optional overrides; production wiring is derived from Cfg when nil.
	Lookup   locale.CountryLookup
	Notifier notification.Notifier

	// Done stops the idle-state sweep when closed.
	Done <-chan struct{}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	svc := newServices(d)
	if d.Cfg.SessionIdleTTL > 0 {
		go svc.sweepIdle(d.Cfg.SessionIdleTTL, d.Done)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Session())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterLocaleRoutes(api, svc)

	otpLimiter := middleware.OTPRateLimit(d.Cache, d.Cfg.OTPRateLimit, d.Logger)
	var commitGuard fiber.Handler
	if d.Cache != nil {
		commitGuard = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterAuthFlowRoutes(api, svc, otpLimiter, commitGuard)

	protected := api.Group("", middleware.SessionAuth(svc.issuer))
	RegisterMeRoutes(protected, svc)

	return nil
}

// ErrorHandler renders errors as JSON bodies.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
