package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bookswap-go-api/internal/config"
	"github.com/noah-isme/bookswap-go-api/internal/handler"
	"github.com/noah-isme/bookswap-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	NegotiationHandler  *handler.NegotiationHandler
	ChatHandler         *handler.ChatHandler
	InboxHandler        *handler.InboxHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Negotiations, with the chat thread nested under the same group
	if deps.NegotiationHandler != nil {
		negotiations := api.Group("/negotiations", jwtMiddleware)
		deps.NegotiationHandler.Register(negotiations)

		if deps.ChatHandler != nil {
			deps.ChatHandler.Register(negotiations)
		}
	}

	// Unified inbox (listing + live websocket)
	if deps.InboxHandler != nil {
		inbox := api.Group("/inbox", jwtMiddleware)
		deps.InboxHandler.Register(inbox)
	}

	// Notifications (listing + SSE stream)
	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
