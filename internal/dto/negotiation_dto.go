package dto

import (
	"time"

	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// NegotiationCreateRequest is the payload to propose a swap negotiation.
// The sender is taken from the caller identity, never from the body.
type NegotiationCreateRequest struct {
	ReceiverID     string  `json:"receiver_id" validate:"required,max=64"`
	TargetBookID   string  `json:"target_book_id" validate:"required,max=64"`
	ProposalKind   string  `json:"proposal_kind" validate:"required,oneof=by_books by_genres give_away open_for_offers"`
	OfferedBookID  *string `json:"offered_book_id" validate:"omitempty,max=64"`
	OfferedGenreID *string `json:"offered_genre_id" validate:"omitempty,max=64"`
	AskForGiveaway bool    `json:"ask_for_giveaway"`
	Note           string  `json:"note" validate:"omitempty,max=2000"`
}

// NegotiationStatusUpdateRequest carries the requested target status. Whether
// the transition is allowed is decided by the state machine, not the validator.
type NegotiationStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=pending accepted rejected reserved"`
}

// NegotiationResponse is the serialized representation of a negotiation.
type NegotiationResponse struct {
	ID               uint       `json:"id"`
	SenderID         string     `json:"sender_id"`
	ReceiverID       string     `json:"receiver_id"`
	TargetBookID     string     `json:"target_book_id"`
	ProposalKind     string     `json:"proposal_kind"`
	OfferedBookID    *string    `json:"offered_book_id,omitempty"`
	OfferedGenreID   *string    `json:"offered_genre_id,omitempty"`
	AskForGiveaway   bool       `json:"ask_for_giveaway"`
	Note             string     `json:"note,omitempty"`
	Status           string     `json:"status"`
	RequestedAt      time.Time  `json:"requested_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ReadBySenderAt   *time.Time `json:"read_by_sender_at,omitempty"`
	ReadByReceiverAt *time.Time `json:"read_by_receiver_at,omitempty"`
}

// NewNegotiationResponse converts a model into a DTO.
func NewNegotiationResponse(negotiation models.SwapNegotiation) NegotiationResponse {
	return NegotiationResponse{
		ID:               negotiation.ID,
		SenderID:         negotiation.SenderID,
		ReceiverID:       negotiation.ReceiverID,
		TargetBookID:     negotiation.TargetBookID,
		ProposalKind:     string(negotiation.ProposalKind),
		OfferedBookID:    negotiation.OfferedBookID,
		OfferedGenreID:   negotiation.OfferedGenreID,
		AskForGiveaway:   negotiation.AskForGiveaway,
		Note:             negotiation.Note,
		Status:           string(negotiation.Status),
		RequestedAt:      negotiation.CreatedAt,
		UpdatedAt:        negotiation.UpdatedAt,
		ReadBySenderAt:   negotiation.ReadBySenderAt,
		ReadByReceiverAt: negotiation.ReadByReceiverAt,
	}
}
