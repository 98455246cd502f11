package dto

import (
	"time"

	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// ChatMessageSendRequest is the payload to post a message into a negotiation
// thread. Text and images are individually optional; the service rejects
// messages where both are empty.
type ChatMessageSendRequest struct {
	Text   string   `json:"text" validate:"omitempty,max=4000"`
	Images []string `json:"images" validate:"omitempty,max=10,dive,url"`
}

// ChatMessageResponse is the serialized representation of a chat message.
type ChatMessageResponse struct {
	ID             uint      `json:"id"`
	NegotiationID  uint      `json:"negotiation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text,omitempty"`
	Images         []string  `json:"images,omitempty"`
	ReadByReceiver bool      `json:"read_by_receiver"`
	SentAt         time.Time `json:"sent_at"`
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:             message.ID,
		NegotiationID:  message.NegotiationID,
		SenderID:       message.SenderID,
		Text:           message.Text,
		Images:         message.Images,
		ReadByReceiver: message.ReadByReceiver,
		SentAt:         message.CreatedAt,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}

// UnreadCountResponse reports the viewer's unread message count for a thread.
type UnreadCountResponse struct {
	NegotiationID uint  `json:"negotiation_id"`
	UnreadCount   int64 `json:"unread_count"`
}
