package dto

import (
	"time"

	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// NotificationResponse represents a persisted out-of-band notice returned to clients.
type NotificationResponse struct {
	ID            uint      `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	NegotiationID uint      `json:"negotiation_id,omitempty"`
	Message       string    `json:"message"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            model.ID,
		UserID:        model.UserID,
		Type:          model.Type,
		NegotiationID: model.NegotiationID,
		Message:       model.Message,
		Read:          model.Read,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
