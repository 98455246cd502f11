package dto

import "time"

// InboxDirection tells whether the viewer initiated the negotiation or
// received it.
type InboxDirection string

const (
	DirectionSent     InboxDirection = "sent"
	DirectionReceived InboxDirection = "received"
)

// InboxItemResponse is a per-viewer projection of a negotiation plus its
// unread/read metadata. It is computed on read and never persisted.
type InboxItemResponse struct {
	Negotiation        NegotiationResponse `json:"negotiation"`
	Direction          InboxDirection      `json:"direction"`
	UnreadMessageCount int64               `json:"unread_message_count"`
	HasNewMessages     bool                `json:"has_new_messages"`
	IsUnread           bool                `json:"is_unread"`
	LastMessageAt      *time.Time          `json:"last_message_at,omitempty"`
}

// InboxSnapshot is the full current inbox pushed to live subscribers.
type InboxSnapshot struct {
	UserID      string              `json:"user_id"`
	Items       []InboxItemResponse `json:"items"`
	GeneratedAt time.Time           `json:"generated_at"`
}
