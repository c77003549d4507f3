package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
	"github.com/nyirinkindi/eshuri-messaging/internal/presence"
	"github.com/nyirinkindi/eshuri-messaging/internal/service"
	"github.com/nyirinkindi/eshuri-messaging/internal/ws"
)

type Handlers struct {
	svc      *service.MessageService
	gateway  *ws.Gateway
	presence *presence.Store // optional
}

func NewHandlers(svc *service.MessageService, gateway *ws.Gateway, pres *presence.Store) *Handlers {
	return &Handlers{svc: svc, gateway: gateway, presence: pres}
}

func caller(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

// fail maps the error taxonomy onto client-visible statuses.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrStore):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// maxPageSize caps client-supplied limits before they reach the store.
const maxPageSize = 100

func queryInt(c *fiber.Ctx, key string, def int64) int64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func queryLimit(c *fiber.Ctx, def int64) int64 {
	n := queryInt(c, "limit", def)
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

func (h *Handlers) listConversations(c *fiber.Ctx) error {
	entries, err := h.svc.ListConversations(c.Context(), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": entries})
}

func (h *Handlers) conversationWindow(c *fiber.Ctx) error {
	convID := c.Params("conversation_id")
	page := queryInt(c, "page", 1)
	limit := queryLimit(c, 50)
	includeDeleted := c.QueryBool("include_deleted", false)

	msgs, err := h.svc.Window(c.Context(), convID, page, limit, includeDeleted)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msgs})
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		Dest        string `json:"dest"`
		Msg         string `json:"msg"`
		MessageType string `json:"messageType"`
		Attachment  string `json:"attachment"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	m, err := h.svc.SendMessage(c.Context(), domain.Draft{
		SenderID:    caller(c),
		RecipientID: req.Dest,
		Body:        req.Msg,
		Type:        domain.MessageType(req.MessageType),
		Attachment:  req.Attachment,
	})
	if err != nil {
		return fail(c, err)
	}

	// Best-effort push; a disconnected recipient discovers the message via
	// the conversation window.
	if h.gateway != nil {
		h.gateway.NotifyNewMessage(m)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": m})
}

func (h *Handlers) markConversationRead(c *fiber.Ctx) error {
	convID := c.Params("conversation_id")
	n, err := h.svc.MarkConversationRead(c.Context(), convID, caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "updated": n})
}

func (h *Handlers) unreadCount(c *fiber.Ctx) error {
	n, err := h.svc.UnreadCount(c.Context(), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "count": n})
}

func (h *Handlers) search(c *fiber.Ctx) error {
	term := c.Query("q")
	if term == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q is required"})
	}
	page := queryInt(c, "page", 1)
	limit := queryLimit(c, 20)

	msgs, err := h.svc.Search(c.Context(), caller(c), term, page, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msgs})
}

func (h *Handlers) deleteMessage(c *fiber.Ctx) error {
	msgID := c.Params("message_id")
	m, err := h.svc.Delete(c.Context(), msgID, caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "deleted": m.IsDeleted})
}

func (h *Handlers) getPresence(c *fiber.Ctx) error {
	uid := c.Params("user_id")
	if h.presence != nil {
		online, err := h.presence.IsOnline(c.Context(), uid)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"user_id": uid, "online": online})
	}
	return c.JSON(fiber.Map{"user_id": uid, "online": h.gateway != nil && h.gateway.Connected(uid)})
}
