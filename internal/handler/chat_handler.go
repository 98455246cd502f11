package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/middleware"
	"github.com/noah-isme/bookswap-go-api/internal/service"
	"github.com/noah-isme/bookswap-go-api/internal/utils"
)

// ChatHandler exposes the per-negotiation message thread.
type ChatHandler struct {
	service service.ChatThreadService
	logger  zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatThreadService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds the chat routes under the negotiation group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("/:id/messages", h.fetch)
	router.Post("/:id/messages", h.send)
	router.Get("/:id/messages/unread", h.unreadCount)
}

// fetch returns the full thread and marks the counterparty's messages read.
func (h *ChatHandler) fetch(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid negotiation id")
	}

	messages, err := h.service.Fetch(h.requestContext(c), id, userID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid negotiation id")
	}

	var payload dto.ChatMessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Send(h.requestContext(c), id, userID, payload)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ChatHandler) unreadCount(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid negotiation id")
	}

	count, err := h.service.UnreadCount(h.requestContext(c), id, userID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "unread count", dto.UnreadCountResponse{NegotiationID: id, UnreadCount: count})
}

func (h *ChatHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
