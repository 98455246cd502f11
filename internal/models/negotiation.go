package models

import (
	"fmt"
	"time"
)

// NegotiationStatus enumerates the lifecycle states of a swap negotiation.
type NegotiationStatus string

const (
	StatusPending  NegotiationStatus = "pending"
	StatusAccepted NegotiationStatus = "accepted"
	StatusRejected NegotiationStatus = "rejected"
	StatusReserved NegotiationStatus = "reserved"
)

// Valid reports whether the status belongs to the known vocabulary.
func (s NegotiationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusReserved:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further transitions and
// releases the active-triple uniqueness key.
func (s NegotiationStatus) Terminal() bool {
	return s == StatusRejected
}

// ProposalKind enumerates what the sender puts on the table.
type ProposalKind string

const (
	KindByBooks       ProposalKind = "by_books"
	KindByGenres      ProposalKind = "by_genres"
	KindGiveAway      ProposalKind = "give_away"
	KindOpenForOffers ProposalKind = "open_for_offers"
)

// Valid reports whether the kind belongs to the known vocabulary.
func (k ProposalKind) Valid() bool {
	switch k {
	case KindByBooks, KindByGenres, KindGiveAway, KindOpenForOffers:
		return true
	}
	return false
}

// RequiresOffer reports whether the kind demands exactly one offer reference.
func (k ProposalKind) RequiresOffer() bool {
	return k == KindByBooks || k == KindByGenres
}

// SwapNegotiation is one proposal from a sender to a receiver to swap a
// specific book. Status and updated_at are mutated only by the negotiation
// service; the read_by timestamps only by the explicit mark-read path.
type SwapNegotiation struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	SenderID         string            `gorm:"size:64;index" json:"sender_id"`
	ReceiverID       string            `gorm:"size:64;index" json:"receiver_id"`
	TargetBookID     string            `gorm:"size:64;index" json:"target_book_id"`
	ProposalKind     ProposalKind      `gorm:"size:32" json:"proposal_kind"`
	OfferedBookID    *string           `gorm:"size:64" json:"offered_book_id,omitempty"`
	OfferedGenreID   *string           `gorm:"size:64" json:"offered_genre_id,omitempty"`
	AskForGiveaway   bool              `gorm:"not null;default:false" json:"ask_for_giveaway"`
	Note             string            `gorm:"type:text" json:"note"`
	Status           NegotiationStatus `gorm:"size:16;index" json:"status"`
	ActiveKey        *string           `gorm:"size:200;uniqueIndex" json:"-"`
	ReadBySenderAt   *time.Time        `json:"read_by_sender_at,omitempty"`
	ReadByReceiverAt *time.Time        `json:"read_by_receiver_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsParty reports whether the user is the sender or receiver.
func (n SwapNegotiation) IsParty(userID string) bool {
	return userID == n.SenderID || userID == n.ReceiverID
}

// Counterparty returns the other party relative to the given user.
func (n SwapNegotiation) Counterparty(userID string) string {
	if userID == n.SenderID {
		return n.ReceiverID
	}
	return n.SenderID
}

// ActiveTripleKey builds the uniqueness key guarding one live negotiation per
// (sender, receiver, book) triple.
func ActiveTripleKey(senderID, receiverID, bookID string) string {
	return fmt.Sprintf("%s:%s:%s", senderID, receiverID, bookID)
}
