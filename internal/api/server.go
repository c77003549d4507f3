package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/nyirinkindi/eshuri-messaging/internal/auth"
	"github.com/nyirinkindi/eshuri-messaging/internal/metrics"
	"github.com/nyirinkindi/eshuri-messaging/internal/presence"
	"github.com/nyirinkindi/eshuri-messaging/internal/service"
	wsgw "github.com/nyirinkindi/eshuri-messaging/internal/ws"
)

// NewServer wires the REST routes and the websocket upgrade endpoint onto
// one fiber app.
func NewServer(svc *service.MessageService, gateway *wsgw.Gateway, validator *auth.Validator, pres *presence.Store) *fiber.App {
	app := fiber.New()
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	h := NewHandlers(svc, gateway, pres)

	api := app.Group("/v1", bearerAuth(validator))
	api.Get("/conversations", h.listConversations)
	api.Get("/conversations/:conversation_id", h.conversationWindow)
	api.Post("/conversations/:conversation_id/read", h.markConversationRead)
	api.Post("/messages", h.sendMessage)
	api.Get("/messages/unread-count", h.unreadCount)
	api.Get("/messages/search", h.search)
	api.Delete("/messages/:message_id", h.deleteMessage)
	api.Get("/presence/:user_id", h.getPresence)

	// The handshake authenticates the connection; the gateway trusts only
	// the token subject, never a client-claimed id.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("token")
		if token == "" {
			return fiber.ErrUnauthorized
		}
		sub, err := validator.Validate(token)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user_id", sub)
		return c.Next()
	})
	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		if userID == "" {
			_ = conn.Close()
			return
		}
		gateway.Handle(conn, userID)
	}))

	return app
}

func bearerAuth(validator *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		if hdr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		parts := strings.SplitN(hdr, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization"})
		}
		sub, err := validator.Validate(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", sub)
		return c.Next()
	}
}
