package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/models"
	"github.com/noah-isme/bookswap-go-api/internal/observability"
	"github.com/noah-isme/bookswap-go-api/internal/repository"
)

const chatPreviewLength = 80

// ChatThreadService manages the per-negotiation message thread. Only the two
// negotiation parties may read or write; fetching the thread is what clears
// the viewer's unread state.
type ChatThreadService interface {
	Fetch(ctx context.Context, negotiationID uint, viewerID string) ([]dto.ChatMessageResponse, error)
	Send(ctx context.Context, negotiationID uint, senderID string, payload dto.ChatMessageSendRequest) (dto.ChatMessageResponse, error)
	UnreadCount(ctx context.Context, negotiationID uint, viewerID string) (int64, error)
}

type chatThreadService struct {
	negotiations repository.NegotiationRepository
	messages     repository.MessageRepository
	notifier     NotifierService
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
}

// NewChatThreadService constructs the chat thread service.
func NewChatThreadService(negotiations repository.NegotiationRepository, messages repository.MessageRepository, notifier NotifierService, validate *validator.Validate, logger zerolog.Logger) ChatThreadService {
	return &chatThreadService{
		negotiations: negotiations,
		messages:     messages,
		notifier:     notifier,
		validator:    validate,
		logger:       logger.With().Str("component", "chat_thread_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/bookswap-go-api/internal/service/chat"),
		sanitizer:    bluemonday.StrictPolicy(),
	}
}

// Fetch returns the thread in sent order and marks every counterparty message
// read first. Marking is an idempotent bulk update, so concurrent fetches by
// the same viewer are safe.
func (s *chatThreadService) Fetch(ctx context.Context, negotiationID uint, viewerID string) ([]dto.ChatMessageResponse, error) {
	if _, err := s.authorize(ctx, negotiationID, viewerID); err != nil {
		return nil, err
	}

	if _, err := s.messages.MarkReadForViewer(ctx, negotiationID, viewerID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}

	return dto.NewChatMessageResponseSlice(messages), nil
}

func (s *chatThreadService) Send(ctx context.Context, negotiationID uint, senderID string, payload dto.ChatMessageSendRequest) (dto.ChatMessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	negotiation, err := s.authorize(ctx, negotiationID, senderID)
	if err != nil {
		return dto.ChatMessageResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if text == "" && len(payload.Images) == 0 {
		return dto.ChatMessageResponse{}, ErrEmptyMessage
	}

	attrs := []attribute.KeyValue{
		attribute.Int("chat.negotiation_id", int(negotiationID)),
		attribute.String("chat.sender_id", senderID),
	}
	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(attrs...))
	defer span.End()

	message := models.ChatMessage{
		NegotiationID: negotiationID,
		SenderID:      senderID,
		Text:          text,
		Images:        datatypes.NewJSONSlice(payload.Images),
	}

	if err := s.messages.Create(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.ChatMessageResponse{}, err
	}

	observability.ChatMessagesSent().Inc()

	recipient := negotiation.Counterparty(senderID)
	s.notifier.ChatMessagePosted(recipient, negotiationID, preview(text))
	s.notifier.InboxChanged(negotiation.SenderID, negotiation.ReceiverID)

	return dto.NewChatMessageResponse(message), nil
}

func (s *chatThreadService) UnreadCount(ctx context.Context, negotiationID uint, viewerID string) (int64, error) {
	if _, err := s.authorize(ctx, negotiationID, viewerID); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, negotiationID, viewerID)
}

func (s *chatThreadService) authorize(ctx context.Context, negotiationID uint, userID string) (models.SwapNegotiation, error) {
	negotiation, err := s.negotiations.FindByID(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.SwapNegotiation{}, ErrNegotiationNotFound
		}
		return models.SwapNegotiation{}, err
	}
	if !negotiation.IsParty(userID) {
		return models.SwapNegotiation{}, ErrNotParticipant
	}
	return negotiation, nil
}

func preview(text string) string {
	if text == "" {
		return "New photo message"
	}
	if runes := []rune(text); len(runes) > chatPreviewLength {
		return string(runes[:chatPreviewLength]) + "…"
	}
	return text
}
