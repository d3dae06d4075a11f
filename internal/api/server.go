package api

import (
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/metrics"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type ServerDeps struct {
	Handler  *Handler
	Limiter  middleware.Limiter // nil disables rate limiting
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func NewServer(d ServerDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "batepapo",
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestLogger(d.Log))
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(d.Gatherer)))

	if d.Limiter != nil {
		app.Use(middleware.RateLimit(d.Limiter, d.Log))
	}

	h := d.Handler
	app.Post("/participants", h.Register)
	app.Get("/participants", h.ListParticipants)

	app.Post("/messages", h.PostMessage)
	app.Get("/messages", h.ListMessages)
	app.Put("/messages/:id", h.EditMessage)
	app.Delete("/messages/:id", h.DeleteMessage)

	app.Post("/status", h.RefreshStatus)
	return app
}
