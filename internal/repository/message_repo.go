package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/guvercin/messaging-backend/internal/common"
	"github.com/guvercin/messaging-backend/internal/domain"
)

// MessageRepository message data access interface
type MessageRepository interface {
	Insert(msg *domain.Message) (uint, error)
	FindByID(id uint) (*domain.Message, error)
	UpdateDelivered(id uint) error
	UpdateSeen(id uint, seen bool, at time.Time) error
	ConversationBetween(viewer, peer string) ([]*domain.Message, error)
	SoftDelete(user string, id uint) (domain.DeleteOutcome, error)
	HardDelete(id uint) (*domain.Message, error)
	Partners(username string) ([]string, error)
	LatestFileMessage(receiver, fileName string) (*domain.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Insert persists a new message with delivered/seen unset and returns the
// store-assigned id. Failures surface as common.ErrPersistence.
func (r *messageRepository) Insert(msg *domain.Message) (uint, error) {
	msg.ID = 0
	msg.Delivered = false
	msg.Seen = false
	msg.SeenAt = nil
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := r.db.Create(msg).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return msg.ID, nil
}

// FindByID finds a message by ID
func (r *messageRepository) FindByID(id uint) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// UpdateDelivered marks a message delivered. The guard on the delivered
// column keeps the flag a one-way transition.
func (r *messageRepository) UpdateDelivered(id uint) error {
	result := r.db.Model(&domain.Message{}).
		Where("id = ? AND delivered = ?", id, false).
		Update("delivered", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.existsOrNotFound(id)
	}
	return nil
}

// UpdateSeen applies a seen acknowledgment. seen only moves false→true;
// a seen=false acknowledgment never reverts the flag. Concurrent updates
// to the same row serialize in the store and the last write wins on
// seen_at.
func (r *messageRepository) UpdateSeen(id uint, seen bool, at time.Time) error {
	if !seen {
		return r.existsOrNotFound(id)
	}

	result := r.db.Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"seen": true, "seen_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// existsOrNotFound distinguishes an already-applied update from an
// unknown id.
func (r *messageRepository) existsOrNotFound(id uint) error {
	var count int64
	if err := r.db.Model(&domain.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ConversationBetween returns all messages between viewer and peer, in
// either direction, excluding those the viewer has soft-deleted, oldest
// first.
func (r *messageRepository) ConversationBetween(viewer, peer string) ([]*domain.Message, error) {
	tombstones := r.db.Model(&domain.DeletionMarker{}).
		Select("message_id").
		Where("user = ?", viewer)

	var messages []*domain.Message
	err := r.db.
		Where("((sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?))",
			viewer, peer, peer, viewer).
		Where("id NOT IN (?)", tombstones).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SoftDelete inserts a per-user tombstone. Idempotent: the first call
// reports deleted, repeats report already_deleted. The message row is
// untouched, so the counterpart's view never changes.
func (r *messageRepository) SoftDelete(user string, id uint) (domain.DeleteOutcome, error) {
	if err := r.existsOrNotFound(id); err != nil {
		return "", err
	}

	var count int64
	if err := r.db.Model(&domain.DeletionMarker{}).
		Where("user = ? AND message_id = ?", user, id).
		Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return domain.OutcomeAlreadyDeleted, nil
	}

	marker := &domain.DeletionMarker{User: user, MessageID: id}
	if err := r.db.Create(marker).Error; err != nil {
		// Two racing soft deletes collapse on the composite primary key.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.OutcomeAlreadyDeleted, nil
		}
		return "", err
	}
	return domain.OutcomeDeleted, nil
}

// HardDelete removes the message row permanently and returns the removed
// row so the caller can clean up any stored file. Not idempotent.
func (r *messageRepository) HardDelete(id uint) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	if err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("message_id = ?", id).Delete(&domain.DeletionMarker{}).Error
	}); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Partners returns the distinct usernames the given user has exchanged
// messages with, skipping conversations fully hidden by soft deletes.
func (r *messageRepository) Partners(username string) ([]string, error) {
	tombstones := r.db.Model(&domain.DeletionMarker{}).
		Select("message_id").
		Where("user = ?", username)

	var partners []string
	err := r.db.Model(&domain.Message{}).
		Select("DISTINCT CASE WHEN sender = ? THEN receiver ELSE sender END AS partner", username).
		Where("(sender = ? OR receiver = ?)", username, username).
		Where("id NOT IN (?)", tombstones).
		Pluck("partner", &partners).Error
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// LatestFileMessage returns the newest file message stored for
// (receiver, file_name), or common.ErrNotFound if no reference exists.
func (r *messageRepository) LatestFileMessage(receiver, fileName string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.
		Where("receiver = ? AND file_name = ? AND type = ?", receiver, fileName, domain.TypeFile).
		Order("id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}
