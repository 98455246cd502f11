package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// MessageRepository persists the append-only chat thread of a negotiation.
type MessageRepository interface {
	Create(ctx context.Context, message *models.ChatMessage) error
	ListByNegotiation(ctx context.Context, negotiationID uint) ([]models.ChatMessage, error)
	MarkReadForViewer(ctx context.Context, negotiationID uint, viewerID string) (int64, error)
	CountUnread(ctx context.Context, negotiationID uint, viewerID string) (int64, error)
	UnreadCounts(ctx context.Context, negotiationIDs []uint, viewerID string) (map[uint]int64, error)
	LatestSentAt(ctx context.Context, negotiationIDs []uint) (map[uint]time.Time, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListByNegotiation(ctx context.Context, negotiationID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkReadForViewer flips the read flag on every counterparty message the
// viewer has not seen yet. Re-running it is a no-op, which keeps concurrent
// fetches by the same viewer safe.
func (r *messageRepository) MarkReadForViewer(ctx context.Context, negotiationID uint, viewerID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("negotiation_id = ? AND sender_id <> ? AND read_by_receiver = ?", negotiationID, viewerID, false).
		Update("read_by_receiver", true)
	return result.RowsAffected, result.Error
}

func (r *messageRepository) CountUnread(ctx context.Context, negotiationID uint, viewerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("negotiation_id = ? AND sender_id <> ? AND read_by_receiver = ?", negotiationID, viewerID, false).
		Count(&count).Error
	return count, err
}

func (r *messageRepository) UnreadCounts(ctx context.Context, negotiationIDs []uint, viewerID string) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(negotiationIDs))
	if len(negotiationIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		NegotiationID uint
		Total         int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Select("negotiation_id, COUNT(*) AS total").
		Where("negotiation_id IN ? AND sender_id <> ? AND read_by_receiver = ?", negotiationIDs, viewerID, false).
		Group("negotiation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.NegotiationID] = row.Total
	}
	return counts, nil
}

// LatestSentAt returns the send time of each thread's newest message. The
// newest row is resolved by id: the thread is append-only, so ids follow send
// order. Fetching the row through the model keeps the timestamp typed across
// drivers, where a bare MAX(created_at) aggregate comes back untyped.
func (r *messageRepository) LatestSentAt(ctx context.Context, negotiationIDs []uint) (map[uint]time.Time, error) {
	latest := make(map[uint]time.Time, len(negotiationIDs))
	if len(negotiationIDs) == 0 {
		return latest, nil
	}

	newest := r.db.
		Model(&models.ChatMessage{}).
		Select("MAX(id)").
		Where("negotiation_id IN ?", negotiationIDs).
		Group("negotiation_id")

	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("id IN (?)", newest).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for _, message := range messages {
		latest[message.NegotiationID] = message.CreatedAt
	}
	return latest, nil
}
