package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/models"
	"github.com/noah-isme/bookswap-go-api/internal/repository"
)

// InboxSortKey selects the ordering of the unified inbox.
type InboxSortKey string

const (
	SortLatestMessage InboxSortKey = "latest_message"
	SortDate          InboxSortKey = "date"
	SortBookTitle     InboxSortKey = "book_title"
	SortSenderName    InboxSortKey = "sender_name"
	SortStatus        InboxSortKey = "status"
)

func (k InboxSortKey) valid() bool {
	switch k {
	case SortLatestMessage, SortDate, SortBookTitle, SortSenderName, SortStatus:
		return true
	}
	return false
}

// InboxService builds the per-user unified inbox: negotiations the user sent
// merged with those addressed to them, projected with unread metadata and
// ordered by the requested key. It is a pure read path; clearing unread state
// is the job of the chat fetch and the explicit mark-read operation.
type InboxService interface {
	List(ctx context.Context, userID, statusFilter, sortKey string) ([]dto.InboxItemResponse, error)
	Snapshot(ctx context.Context, userID string) (dto.InboxSnapshot, error)
}

type inboxService struct {
	negotiations repository.NegotiationRepository
	messages     repository.MessageRepository
	users        UserDirectory
	books        BookCatalog
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewInboxService constructs the inbox aggregator.
func NewInboxService(negotiations repository.NegotiationRepository, messages repository.MessageRepository, users UserDirectory, books BookCatalog, logger zerolog.Logger) InboxService {
	return &inboxService{
		negotiations: negotiations,
		messages:     messages,
		users:        users,
		books:        books,
		logger:       logger.With().Str("component", "inbox_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/bookswap-go-api/internal/service/inbox"),
		now:          time.Now,
	}
}

func (s *inboxService) List(ctx context.Context, userID, statusFilter, sortKey string) ([]dto.InboxItemResponse, error) {
	var status *models.NegotiationStatus
	if statusFilter != "" {
		parsed := models.NegotiationStatus(statusFilter)
		if !parsed.Valid() {
			return nil, ErrInvalidFilter
		}
		status = &parsed
	}

	key := SortLatestMessage
	if sortKey != "" {
		key = InboxSortKey(sortKey)
		if !key.valid() {
			return nil, ErrInvalidFilter
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("inbox.user_id", userID),
		attribute.String("inbox.sort_key", string(key)),
	}
	spanCtx, span := s.tracer.Start(ctx, "inbox.list", trace.WithAttributes(attrs...))
	defer span.End()

	sent, err := s.negotiations.ListBySender(spanCtx, userID, status)
	if err != nil {
		return nil, err
	}
	received, err := s.negotiations.ListByReceiver(spanCtx, userID, status)
	if err != nil {
		return nil, err
	}

	negotiations := dedupe(append(sent, received...))
	if len(negotiations) == 0 {
		return []dto.InboxItemResponse{}, nil
	}

	ids := make([]uint, 0, len(negotiations))
	for _, negotiation := range negotiations {
		ids = append(ids, negotiation.ID)
	}

	unread, err := s.messages.UnreadCounts(spanCtx, ids, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.messages.LatestSentAt(spanCtx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]dto.InboxItemResponse, 0, len(negotiations))
	for _, negotiation := range negotiations {
		items = append(items, s.project(negotiation, userID, unread[negotiation.ID], latest))
	}

	if err := s.sortItems(spanCtx, items, key); err != nil {
		return nil, err
	}

	return items, nil
}

// Snapshot wraps List with the default ordering for live push subscribers.
func (s *inboxService) Snapshot(ctx context.Context, userID string) (dto.InboxSnapshot, error) {
	items, err := s.List(ctx, userID, "", string(SortLatestMessage))
	if err != nil {
		return dto.InboxSnapshot{}, err
	}
	return dto.InboxSnapshot{
		UserID:      userID,
		Items:       items,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *inboxService) project(negotiation models.SwapNegotiation, userID string, unread int64, latest map[uint]time.Time) dto.InboxItemResponse {
	direction := dto.DirectionReceived
	readAt := negotiation.ReadByReceiverAt
	if negotiation.SenderID == userID {
		direction = dto.DirectionSent
		readAt = negotiation.ReadBySenderAt
	}

	item := dto.InboxItemResponse{
		Negotiation:        dto.NewNegotiationResponse(negotiation),
		Direction:          direction,
		UnreadMessageCount: unread,
		HasNewMessages:     unread > 0,
		IsUnread:           readAt == nil,
	}
	if at, ok := latest[negotiation.ID]; ok {
		item.LastMessageAt = &at
	}
	return item
}

func (s *inboxService) sortItems(ctx context.Context, items []dto.InboxItemResponse, key InboxSortKey) error {
	switch key {
	case SortLatestMessage:
		// Threads with messages rank first by last activity; silent threads
		// follow, newest proposal first.
		sort.SliceStable(items, func(i, j int) bool {
			left, right := items[i].LastMessageAt, items[j].LastMessageAt
			switch {
			case left != nil && right != nil:
				return left.After(*right)
			case left != nil:
				return true
			case right != nil:
				return false
			default:
				return items[i].Negotiation.RequestedAt.After(items[j].Negotiation.RequestedAt)
			}
		})
	case SortDate:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Negotiation.RequestedAt.After(items[j].Negotiation.RequestedAt)
		})
	case SortBookTitle:
		titles, err := s.bookTitles(ctx, items)
		if err != nil {
			return err
		}
		sort.SliceStable(items, func(i, j int) bool {
			return titles[items[i].Negotiation.TargetBookID] < titles[items[j].Negotiation.TargetBookID]
		})
	case SortSenderName:
		names, err := s.senderNames(ctx, items)
		if err != nil {
			return err
		}
		sort.SliceStable(items, func(i, j int) bool {
			return names[items[i].Negotiation.SenderID] < names[items[j].Negotiation.SenderID]
		})
	case SortStatus:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Negotiation.Status < items[j].Negotiation.Status
		})
	}
	return nil
}

func (s *inboxService) bookTitles(ctx context.Context, items []dto.InboxItemResponse) (map[string]string, error) {
	titles := make(map[string]string, len(items))
	for _, item := range items {
		id := item.Negotiation.TargetBookID
		if _, ok := titles[id]; ok {
			continue
		}
		book, err := s.books.Get(ctx, id)
		if err != nil {
			// A book deleted after proposal should not break the inbox.
			s.logger.Warn().Err(err).Str("book_id", id).Msg("failed to resolve book title for sorting")
			titles[id] = ""
			continue
		}
		titles[id] = strings.ToLower(book.Title)
	}
	return titles, nil
}

func (s *inboxService) senderNames(ctx context.Context, items []dto.InboxItemResponse) (map[string]string, error) {
	names := make(map[string]string, len(items))
	for _, item := range items {
		id := item.Negotiation.SenderID
		if _, ok := names[id]; ok {
			continue
		}
		user, err := s.users.Get(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", id).Msg("failed to resolve sender name for sorting")
			names[id] = ""
			continue
		}
		names[id] = strings.ToLower(user.DisplayName)
	}
	return names, nil
}

func dedupe(negotiations []models.SwapNegotiation) []models.SwapNegotiation {
	seen := make(map[uint]struct{}, len(negotiations))
	out := negotiations[:0]
	for _, negotiation := range negotiations {
		if _, ok := seen[negotiation.ID]; ok {
			continue
		}
		seen[negotiation.ID] = struct{}{}
		out = append(out, negotiation)
	}
	return out
}
