package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bookswap-go-api/internal/service"
	"github.com/noah-isme/bookswap-go-api/internal/utils"
)

// sendServiceError translates domain errors onto the HTTP surface.
//
// Not-found family -> 404; a non-party caller -> 403. Everything the caller
// could have avoided -> 400, including a non-receiver attempting a status
// change: that one is bad-request rather than forbidden on purpose, an
// inherited API contract kept for compatibility.
func sendServiceError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.SendError(c, fiber.StatusBadRequest, "validation failed: "+validationErrors.Error())
	}

	switch {
	case errors.Is(err, service.ErrNegotiationNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrBookNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotParticipant):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSelfNegotiation),
		errors.Is(err, service.ErrBookNotOwned),
		errors.Is(err, service.ErrOfferNotEligible),
		errors.Is(err, service.ErrOfferShape),
		errors.Is(err, service.ErrNegotiationExists),
		errors.Is(err, service.ErrNotReceiver),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidFilter):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func userIDFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func parseIDParam(c *fiber.Ctx, key string) (uint, error) {
	raw := c.Params(key)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(parsed), nil
}
