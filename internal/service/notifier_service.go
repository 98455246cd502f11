package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/models"
	"github.com/noah-isme/bookswap-go-api/internal/observability"
	"github.com/noah-isme/bookswap-go-api/internal/repository"
)

// Notice type vocabulary for persisted out-of-band notices.
const (
	NoticeNegotiationCreated = "negotiation_created"
	NoticeNegotiationStatus  = "negotiation_status"
	NoticeChatMessage        = "chat_message"
)

const (
	defaultDispatchQueue = 256
	subscriberBufferSize = 16
)

// InboxEvent tells a live subscriber that something changed for a user. It is
// idempotent by design: it carries only the user id and the subscriber
// re-fetches the inbox.
type InboxEvent struct {
	UserID string `json:"user_id"`
}

// NotifierService is the fire-and-forget side channel for negotiation and
// chat writes. Every call enqueues and returns immediately; a stuck delivery
// channel can never block the triggering operation. Delivery is best-effort
// with no ordering guarantee between rapid successive events.
type NotifierService interface {
	NegotiationCreated(receiverID string, negotiationID uint, summary string)
	NegotiationStatusChanged(senderID string, negotiationID uint, status models.NegotiationStatus, summary string)
	ChatMessagePosted(recipientID string, negotiationID uint, summary string)
	InboxChanged(userIDs ...string)
	SubscribeInbox(userID string) (<-chan InboxEvent, func())
	SubscribeNotices(userID string) (<-chan dto.NotificationResponse, func())
	List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	Start(ctx context.Context)
}

type notifierService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	queue       chan dispatchJob
	inbox       *broker[InboxEvent]
	notices     *broker[dto.NotificationResponse]
	nodeID      string
}

type dispatchJob struct {
	notice  *models.Notification
	refresh []string
}

// fanoutEvent is the cross-node envelope published to redis and NATS. Source
// carries the node id so a node ignores events it published itself.
type fanoutEvent struct {
	Source string                    `json:"source"`
	Kind   string                    `json:"kind"`
	UserID string                    `json:"user_id"`
	Notice *dto.NotificationResponse `json:"notice,omitempty"`
	SentAt time.Time                 `json:"sent_at"`
}

// NewNotifierService constructs the dispatcher. Redis and NATS connections
// are optional; without them fan-out stays node-local.
func NewNotifierService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, queueSize int, logger zerolog.Logger) NotifierService {
	if queueSize <= 0 {
		queueSize = defaultDispatchQueue
	}

	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &notifierService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "notifier_service").Logger(),
		queue:       make(chan dispatchJob, queueSize),
		inbox:       newBroker[InboxEvent](),
		notices:     newBroker[dto.NotificationResponse](),
		nodeID:      uuid.NewString(),
	}
}

func (s *notifierService) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notifierService) NegotiationCreated(receiverID string, negotiationID uint, summary string) {
	s.enqueue(dispatchJob{
		notice:  &models.Notification{UserID: receiverID, Type: NoticeNegotiationCreated, NegotiationID: negotiationID, Message: summary},
		refresh: []string{receiverID},
	})
}

func (s *notifierService) NegotiationStatusChanged(senderID string, negotiationID uint, status models.NegotiationStatus, summary string) {
	s.enqueue(dispatchJob{
		notice:  &models.Notification{UserID: senderID, Type: NoticeNegotiationStatus, NegotiationID: negotiationID, Message: summary},
		refresh: []string{senderID},
	})
}

func (s *notifierService) ChatMessagePosted(recipientID string, negotiationID uint, summary string) {
	s.enqueue(dispatchJob{
		notice: &models.Notification{UserID: recipientID, Type: NoticeChatMessage, NegotiationID: negotiationID, Message: summary},
	})
}

func (s *notifierService) InboxChanged(userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	s.enqueue(dispatchJob{refresh: userIDs})
}

func (s *notifierService) SubscribeInbox(userID string) (<-chan InboxEvent, func()) {
	channel := s.inbox.subscribe(userID)
	observability.InboxSubscribers().Inc()

	return channel, func() {
		s.inbox.unsubscribe(userID, channel)
		observability.InboxSubscribers().Dec()
	}
}

func (s *notifierService) SubscribeNotices(userID string) (<-chan dto.NotificationResponse, func()) {
	channel := s.notices.subscribe(userID)
	observability.NoticeSubscribers().Inc()

	return channel, func() {
		s.notices.unsubscribe(userID, channel)
		observability.NoticeSubscribers().Dec()
	}
}

func (s *notifierService) List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error) {
	notices, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notices), nil
}

func (s *notifierService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	notice, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		return dto.NotificationResponse{}, err
	}
	return dto.NewNotificationResponse(notice), nil
}

// enqueue never blocks: when the queue is full the job is dropped and logged.
func (s *notifierService) enqueue(job dispatchJob) {
	select {
	case s.queue <- job:
	default:
		observability.DispatchDropped().Inc()
		s.logger.Warn().Msg("dispatch queue full, dropping notification job")
	}
}

func (s *notifierService) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.process(ctx, job)
		}
	}
}

func (s *notifierService) process(ctx context.Context, job dispatchJob) {
	if job.notice != nil {
		s.deliverNotice(ctx, job.notice)
	}

	for _, userID := range job.refresh {
		s.deliverRefresh(ctx, userID)
	}
}

func (s *notifierService) deliverNotice(ctx context.Context, notice *models.Notification) {
	if err := s.repo.Create(ctx, notice); err != nil {
		s.logger.Warn().Err(err).Str("user_id", notice.UserID).Msg("failed to persist notification")
		return
	}

	response := dto.NewNotificationResponse(*notice)
	s.notices.broadcast(notice.UserID, response)
	s.publish(ctx, fanoutEvent{
		Source: s.nodeID,
		Kind:   "notice",
		UserID: notice.UserID,
		Notice: &response,
		SentAt: time.Now().UTC(),
	})

	observability.NotificationsPublished().WithLabelValues(notice.Type).Inc()
}

func (s *notifierService) deliverRefresh(ctx context.Context, userID string) {
	s.inbox.broadcast(userID, InboxEvent{UserID: userID})
	s.publish(ctx, fanoutEvent{
		Source: s.nodeID,
		Kind:   "inbox_refresh",
		UserID: userID,
		SentAt: time.Now().UTC(),
	})

	observability.InboxEvents().Inc()
}

func (s *notifierService) publish(ctx context.Context, event fanoutEvent) {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal fanout event")
		return
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish fanout event to redis")
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish fanout event to nats")
		}
	}
}

// consumeRedis keeps a subscription on the fan-out channel alive for the
// lifetime of the context. A receive error tears down only the current
// subscription; a fresh one is opened after a short pause so a redis blip
// does not leave the node permanently without cross-node events.
func (s *notifierService) consumeRedis(ctx context.Context) {
	for {
		pubsub := s.redis.Subscribe(ctx, s.redisStream)

		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					_ = pubsub.Close()
					return
				}
				s.logger.Warn().Err(err).Msg("fanout redis subscription interrupted, resubscribing")
				break
			}
			s.handleEvent([]byte(msg.Payload))
		}

		_ = pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *notifierService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "bookswap-events", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain nats events subscription")
		}
	}()
}

func (s *notifierService) handleEvent(payload []byte) {
	var event fanoutEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid fanout event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	switch event.Kind {
	case "notice":
		if event.Notice != nil {
			s.notices.broadcast(event.UserID, *event.Notice)
		}
	case "inbox_refresh":
		s.inbox.broadcast(event.UserID, InboxEvent{UserID: event.UserID})
	default:
		s.logger.Warn().Str("kind", event.Kind).Msg("unknown fanout event kind")
	}
}

// broker tracks live per-user subscriber channels. Broadcast never blocks:
// a slow subscriber misses the event instead of stalling the worker.
type broker[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan T]struct{}
}

func newBroker[T any]() *broker[T] {
	return &broker[T]{subscribers: make(map[string]map[chan T]struct{})}
}

func (b *broker[T]) subscribe(userID string) chan T {
	channel := make(chan T, subscriberBufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan T]struct{})
	}
	b.subscribers[userID][channel] = struct{}{}
	return channel
}

func (b *broker[T]) unsubscribe(userID string, channel <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[userID]
	if !ok {
		return
	}
	for ch := range subscribers {
		if ch == channel {
			delete(subscribers, ch)
			close(ch)
			break
		}
	}
	if len(subscribers) == 0 {
		delete(b.subscribers, userID)
	}
}

func (b *broker[T]) broadcast(userID string, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- payload:
		default:
		}
	}
}
