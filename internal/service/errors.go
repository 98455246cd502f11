package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// Domain errors raised by the negotiation core. Handlers map these onto HTTP
// statuses; see internal/handler/helpers.go for the table.
var (
	// ErrNegotiationNotFound indicates the negotiation id does not resolve.
	ErrNegotiationNotFound = errors.New("negotiation not found")

	// ErrUserNotFound indicates the user collaborator could not resolve the id.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotificationNotFound indicates the notification id does not resolve
	// for the requesting user.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrBookNotFound indicates the catalog collaborator could not resolve the id.
	ErrBookNotFound = errors.New("book not found")

	// ErrNotParticipant indicates the caller is neither sender nor receiver.
	ErrNotParticipant = errors.New("caller is not a party to this negotiation")

	// ErrSelfNegotiation indicates sender and receiver are the same user.
	ErrSelfNegotiation = errors.New("cannot open a negotiation with yourself")

	// ErrBookNotOwned indicates the target book does not belong to the receiver.
	ErrBookNotOwned = errors.New("target book is not owned by the receiver")

	// ErrOfferNotEligible indicates the offered book or genre is not in the
	// target book's advertised swappable set.
	ErrOfferNotEligible = errors.New("offer is not eligible for the target book")

	// ErrOfferShape indicates the offer fields do not match the proposal kind:
	// by_books/by_genres need exactly one reference, the other kinds need none.
	ErrOfferShape = errors.New("offer fields do not match the proposal kind")

	// ErrNegotiationExists indicates an active negotiation already covers the
	// same (sender, receiver, book) triple.
	ErrNegotiationExists = errors.New("an active negotiation for this book already exists")

	// ErrNotReceiver indicates a non-receiver attempted a status change. Kept
	// as a bad-request class, not forbidden, per the inherited API contract.
	ErrNotReceiver = errors.New("only the receiver may change the negotiation status")

	// ErrInvalidTransition is the class matched by errors.Is for any rejected
	// status transition; the concrete error carries the pair.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrEmptyMessage indicates a chat message with neither text nor images.
	ErrEmptyMessage = errors.New("message needs text or at least one image")

	// ErrInvalidFilter indicates an unknown status filter or sort key.
	ErrInvalidFilter = errors.New("unknown filter value")
)

// InvalidTransitionError reports a transition outside the lifecycle table.
type InvalidTransitionError struct {
	Current   models.NegotiationStatus
	Requested models.NegotiationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("status transition %s -> %s not allowed", e.Current, e.Requested)
}

// Is lets errors.Is match the ErrInvalidTransition class.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
