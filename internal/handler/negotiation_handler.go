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

// NegotiationHandler exposes the proposal and status-transition endpoints.
type NegotiationHandler struct {
	service service.NegotiationService
	logger  zerolog.Logger
}

// NewNegotiationHandler constructs a handler instance.
func NewNegotiationHandler(service service.NegotiationService, logger zerolog.Logger) *NegotiationHandler {
	return &NegotiationHandler{
		service: service,
		logger:  logger.With().Str("component", "negotiation_handler").Logger(),
	}
}

// Register binds the negotiation routes.
func (h *NegotiationHandler) Register(router fiber.Router) {
	router.Post("/", h.propose)
	router.Get("/:id", h.get)
	router.Patch("/:id/status", h.transition)
	router.Post("/:id/read", h.markRead)
}

func (h *NegotiationHandler) propose(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.NegotiationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	negotiation, err := h.service.Propose(h.requestContext(c), userID, payload)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "negotiation created", negotiation)
}

func (h *NegotiationHandler) get(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid negotiation id")
	}

	negotiation, err := h.service.Get(h.requestContext(c), id, userID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "negotiation", negotiation)
}

func (h *NegotiationHandler) transition(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid negotiation id")
	}

	var payload dto.NegotiationStatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	negotiation, err := h.service.Transition(h.requestContext(c), id, userID, payload)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "negotiation updated", negotiation)
}

func (h *NegotiationHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid negotiation id")
	}

	negotiation, err := h.service.MarkRead(h.requestContext(c), id, userID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "negotiation marked read", negotiation)
}

func (h *NegotiationHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
