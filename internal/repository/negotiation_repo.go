package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate indicates a uniqueness constraint rejected the write.
var ErrDuplicate = errors.New("record already exists")

// NegotiationRepository persists swap negotiations and serves the query
// shapes the state machine and inbox need.
type NegotiationRepository interface {
	Create(ctx context.Context, negotiation *models.SwapNegotiation) error
	FindByID(ctx context.Context, id uint) (models.SwapNegotiation, error)
	Save(ctx context.Context, negotiation *models.SwapNegotiation) error
	ListBySender(ctx context.Context, senderID string, status *models.NegotiationStatus) ([]models.SwapNegotiation, error)
	ListByReceiver(ctx context.Context, receiverID string, status *models.NegotiationStatus) ([]models.SwapNegotiation, error)
	ActiveExists(ctx context.Context, senderID, receiverID, bookID string) (bool, error)
	SetReadAt(ctx context.Context, id uint, forSender bool, at time.Time) error
}

type negotiationRepository struct {
	db *gorm.DB
}

// NewNegotiationRepository constructs a negotiation repository backed by GORM.
func NewNegotiationRepository(db *gorm.DB) NegotiationRepository {
	return &negotiationRepository{db: db}
}

func (r *negotiationRepository) Create(ctx context.Context, negotiation *models.SwapNegotiation) error {
	err := r.db.WithContext(ctx).Create(negotiation).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *negotiationRepository) FindByID(ctx context.Context, id uint) (models.SwapNegotiation, error) {
	var negotiation models.SwapNegotiation
	if err := r.db.WithContext(ctx).First(&negotiation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.SwapNegotiation{}, ErrNotFound
		}
		return models.SwapNegotiation{}, err
	}
	return negotiation, nil
}

func (r *negotiationRepository) Save(ctx context.Context, negotiation *models.SwapNegotiation) error {
	return r.db.WithContext(ctx).Save(negotiation).Error
}

func (r *negotiationRepository) ListBySender(ctx context.Context, senderID string, status *models.NegotiationStatus) ([]models.SwapNegotiation, error) {
	return r.list(ctx, "sender_id", senderID, status)
}

func (r *negotiationRepository) ListByReceiver(ctx context.Context, receiverID string, status *models.NegotiationStatus) ([]models.SwapNegotiation, error) {
	return r.list(ctx, "receiver_id", receiverID, status)
}

func (r *negotiationRepository) list(ctx context.Context, column, userID string, status *models.NegotiationStatus) ([]models.SwapNegotiation, error) {
	query := r.db.WithContext(ctx).Where(column+" = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var negotiations []models.SwapNegotiation
	if err := query.Order("created_at DESC").Find(&negotiations).Error; err != nil {
		return nil, err
	}
	return negotiations, nil
}

func (r *negotiationRepository) ActiveExists(ctx context.Context, senderID, receiverID, bookID string) (bool, error) {
	key := models.ActiveTripleKey(senderID, receiverID, bookID)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SwapNegotiation{}).
		Where("active_key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *negotiationRepository) SetReadAt(ctx context.Context, id uint, forSender bool, at time.Time) error {
	column := "read_by_receiver_at"
	if forSender {
		column = "read_by_sender_at"
	}

	result := r.db.WithContext(ctx).
		Model(&models.SwapNegotiation{}).
		Where("id = ?", id).
		Update(column, at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
