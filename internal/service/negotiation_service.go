package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/models"
	"github.com/noah-isme/bookswap-go-api/internal/observability"
	"github.com/noah-isme/bookswap-go-api/internal/repository"
)

// UserDirectory resolves user summaries. Account management is an external
// collaborator; the core only reads.
type UserDirectory interface {
	Get(ctx context.Context, id string) (models.UserSummary, error)
}

// BookCatalog resolves swap-eligibility data for catalog books.
type BookCatalog interface {
	Get(ctx context.Context, id string) (models.BookSummary, error)
}

// transitionTable is the complete negotiation lifecycle. Only the receiver's
// pending-time decision is modelled; accepted and reserved have no successors
// yet, and rejected is terminal.
var transitionTable = map[models.NegotiationStatus][]models.NegotiationStatus{
	models.StatusPending:  {models.StatusAccepted, models.StatusRejected, models.StatusReserved},
	models.StatusAccepted: {},
	models.StatusRejected: {},
	models.StatusReserved: {},
}

// NegotiationService owns the negotiation lifecycle: proposal validation,
// the status state machine, and the notification side effects around both.
type NegotiationService interface {
	Propose(ctx context.Context, senderID string, payload dto.NegotiationCreateRequest) (dto.NegotiationResponse, error)
	Transition(ctx context.Context, id uint, actorID string, payload dto.NegotiationStatusUpdateRequest) (dto.NegotiationResponse, error)
	Get(ctx context.Context, id uint, viewerID string) (dto.NegotiationResponse, error)
	MarkRead(ctx context.Context, id uint, viewerID string) (dto.NegotiationResponse, error)
}

type negotiationService struct {
	repo      repository.NegotiationRepository
	users     UserDirectory
	books     BookCatalog
	notifier  NotifierService
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewNegotiationService constructs the negotiation state machine service.
func NewNegotiationService(repo repository.NegotiationRepository, users UserDirectory, books BookCatalog, notifier NotifierService, validate *validator.Validate, logger zerolog.Logger) NegotiationService {
	return &negotiationService{
		repo:      repo,
		users:     users,
		books:     books,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", "negotiation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/bookswap-go-api/internal/service/negotiation"),
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

func (s *negotiationService) Propose(ctx context.Context, senderID string, payload dto.NegotiationCreateRequest) (dto.NegotiationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NegotiationResponse{}, err
	}

	if senderID == payload.ReceiverID {
		return dto.NegotiationResponse{}, ErrSelfNegotiation
	}

	attrs := []attribute.KeyValue{
		attribute.String("negotiation.sender_id", senderID),
		attribute.String("negotiation.receiver_id", payload.ReceiverID),
		attribute.String("negotiation.target_book_id", payload.TargetBookID),
		attribute.String("negotiation.proposal_kind", payload.ProposalKind),
	}
	spanCtx, span := s.tracer.Start(ctx, "negotiation.propose", trace.WithAttributes(attrs...))
	defer span.End()

	if _, err := s.users.Get(spanCtx, payload.ReceiverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.NegotiationResponse{}, ErrUserNotFound
		}
		return dto.NegotiationResponse{}, err
	}

	exists, err := s.repo.ActiveExists(spanCtx, senderID, payload.ReceiverID, payload.TargetBookID)
	if err != nil {
		return dto.NegotiationResponse{}, err
	}
	if exists {
		return dto.NegotiationResponse{}, ErrNegotiationExists
	}

	book, err := s.books.Get(spanCtx, payload.TargetBookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.NegotiationResponse{}, ErrBookNotFound
		}
		return dto.NegotiationResponse{}, err
	}
	if book.OwnerID != payload.ReceiverID {
		return dto.NegotiationResponse{}, ErrBookNotOwned
	}

	kind := models.ProposalKind(payload.ProposalKind)
	if err := validateOffer(kind, payload.OfferedBookID, payload.OfferedGenreID, book); err != nil {
		return dto.NegotiationResponse{}, err
	}

	key := models.ActiveTripleKey(senderID, payload.ReceiverID, payload.TargetBookID)
	negotiation := models.SwapNegotiation{
		SenderID:       senderID,
		ReceiverID:     payload.ReceiverID,
		TargetBookID:   payload.TargetBookID,
		ProposalKind:   kind,
		OfferedBookID:  payload.OfferedBookID,
		OfferedGenreID: payload.OfferedGenreID,
		AskForGiveaway: payload.AskForGiveaway,
		Note:           strings.TrimSpace(s.sanitizer.Sanitize(payload.Note)),
		Status:         models.StatusPending,
		ActiveKey:      &key,
	}

	if err := s.repo.Create(spanCtx, &negotiation); err != nil {
		span.RecordError(err)
		// The unique active_key index backstops the existence check above:
		// two racing proposals both pass the check, only one inserts.
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.NegotiationResponse{}, ErrNegotiationExists
		}
		return dto.NegotiationResponse{}, err
	}

	observability.NegotiationsCreated().Inc()
	s.logger.Info().
		Uint("negotiation_id", negotiation.ID).
		Str("sender_id", senderID).
		Str("receiver_id", negotiation.ReceiverID).
		Msg("negotiation proposed")

	summary := fmt.Sprintf("New swap proposal for '%s'", book.Title)
	s.notifier.NegotiationCreated(negotiation.ReceiverID, negotiation.ID, summary)

	return dto.NewNegotiationResponse(negotiation), nil
}

func (s *negotiationService) Transition(ctx context.Context, id uint, actorID string, payload dto.NegotiationStatusUpdateRequest) (dto.NegotiationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NegotiationResponse{}, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("negotiation.actor_id", actorID),
		attribute.String("negotiation.requested_status", payload.Status),
	}
	spanCtx, span := s.tracer.Start(ctx, "negotiation.transition", trace.WithAttributes(attrs...))
	defer span.End()

	negotiation, err := s.repo.FindByID(spanCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.NegotiationResponse{}, ErrNegotiationNotFound
		}
		return dto.NegotiationResponse{}, err
	}

	if actorID != negotiation.ReceiverID {
		return dto.NegotiationResponse{}, ErrNotReceiver
	}

	requested := models.NegotiationStatus(payload.Status)
	if !allowedTransition(negotiation.Status, requested) {
		return dto.NegotiationResponse{}, &InvalidTransitionError{Current: negotiation.Status, Requested: requested}
	}

	negotiation.Status = requested
	negotiation.UpdatedAt = s.now()
	if requested.Terminal() {
		negotiation.ActiveKey = nil
	}

	if err := s.repo.Save(spanCtx, &negotiation); err != nil {
		span.RecordError(err)
		return dto.NegotiationResponse{}, err
	}

	observability.NegotiationTransitions().WithLabelValues(string(requested)).Inc()
	s.logger.Info().
		Uint("negotiation_id", negotiation.ID).
		Str("status", string(requested)).
		Msg("negotiation status changed")

	summary := fmt.Sprintf("Your swap proposal was %s", requested)
	s.notifier.NegotiationStatusChanged(negotiation.SenderID, negotiation.ID, requested, summary)

	return dto.NewNegotiationResponse(negotiation), nil
}

func (s *negotiationService) Get(ctx context.Context, id uint, viewerID string) (dto.NegotiationResponse, error) {
	negotiation, err := s.loadForParty(ctx, id, viewerID)
	if err != nil {
		return dto.NegotiationResponse{}, err
	}
	return dto.NewNegotiationResponse(negotiation), nil
}

// MarkRead stamps the caller's negotiation-level read timestamp. Listing the
// inbox never does this implicitly.
func (s *negotiationService) MarkRead(ctx context.Context, id uint, viewerID string) (dto.NegotiationResponse, error) {
	negotiation, err := s.loadForParty(ctx, id, viewerID)
	if err != nil {
		return dto.NegotiationResponse{}, err
	}

	at := s.now()
	forSender := viewerID == negotiation.SenderID
	if err := s.repo.SetReadAt(ctx, id, forSender, at); err != nil {
		return dto.NegotiationResponse{}, err
	}

	if forSender {
		negotiation.ReadBySenderAt = &at
	} else {
		negotiation.ReadByReceiverAt = &at
	}

	return dto.NewNegotiationResponse(negotiation), nil
}

func (s *negotiationService) loadForParty(ctx context.Context, id uint, viewerID string) (models.SwapNegotiation, error) {
	negotiation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.SwapNegotiation{}, ErrNegotiationNotFound
		}
		return models.SwapNegotiation{}, err
	}
	if !negotiation.IsParty(viewerID) {
		return models.SwapNegotiation{}, ErrNotParticipant
	}
	return negotiation, nil
}

func allowedTransition(current, requested models.NegotiationStatus) bool {
	for _, next := range transitionTable[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// validateOffer enforces the offer shape and eligibility rules: kinds that
// trade require exactly one reference drawn from the target book's advertised
// swappable set, giveaway kinds carry no reference at all.
func validateOffer(kind models.ProposalKind, offeredBookID, offeredGenreID *string, book models.BookSummary) error {
	hasBook := offeredBookID != nil && *offeredBookID != ""
	hasGenre := offeredGenreID != nil && *offeredGenreID != ""

	if !kind.RequiresOffer() {
		if hasBook || hasGenre {
			return ErrOfferShape
		}
		return nil
	}

	if hasBook == hasGenre {
		return ErrOfferShape
	}

	switch kind {
	case models.KindByBooks:
		if !hasBook {
			return ErrOfferShape
		}
		if !book.AcceptsBook(*offeredBookID) {
			return ErrOfferNotEligible
		}
	case models.KindByGenres:
		if !hasGenre {
			return ErrOfferShape
		}
		if !book.AcceptsGenre(*offeredGenreID) {
			return ErrOfferNotEligible
		}
	}

	return nil
}
