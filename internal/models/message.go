package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChatMessage is one entry in a negotiation's thread. Messages are immutable
// once created except for the ReadByReceiver flag, which flips when the
// counterparty fetches the thread.
type ChatMessage struct {
	ID             uint                          `gorm:"primaryKey" json:"id"`
	NegotiationID  uint                          `gorm:"index;not null" json:"negotiation_id"`
	SenderID       string                        `gorm:"size:64;index" json:"sender_id"`
	Text           string                        `gorm:"type:text" json:"text,omitempty"`
	Images         datatypes.JSONSlice[string]   `gorm:"type:json" json:"images,omitempty"`
	ReadByReceiver bool                          `gorm:"not null;default:false" json:"read_by_receiver"`
	CreatedAt      time.Time                     `json:"created_at"`
}

// Notification is a persisted out-of-band notice targeted at a single user.
// NegotiationID links the notice back to the negotiation that produced it.
type Notification struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"size:64;index" json:"user_id"`
	Type          string    `gorm:"size:64" json:"type"`
	NegotiationID uint      `gorm:"index" json:"negotiation_id"`
	Message       string    `gorm:"type:text" json:"message"`
	Read          bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
