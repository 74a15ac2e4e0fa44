package services

import (
	"context"
	"errors"

	"ShopChat/models"

	"gorm.io/gorm"
)

// GormStore persists chats with gorm (Postgres in the devserver).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrChatNotFound
	}
	return err
}

func (s *GormStore) CreateChat(ctx context.Context, chat *models.ChatRecord) error {
	return s.db.WithContext(ctx).Create(chat).Error
}

func (s *GormStore) GetChat(ctx context.Context, chatID string) (*models.ChatRecord, error) {
	var chat models.ChatRecord
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&chat).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

func (s *GormStore) FindActiveByUser(ctx context.Context, userID string) (*models.ChatRecord, error) {
	var chat models.ChatRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.ChatStatusActive).
		Order("id DESC").
		First(&chat).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]models.ChatRecord, error) {
	var chats []models.ChatRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", models.ChatStatusActive).
		Order("created_at ASC").
		Find(&chats).Error
	return chats, err
}

func (s *GormStore) SetStatus(ctx context.Context, chatID, status string) error {
	res := s.db.WithContext(ctx).Model(&models.ChatRecord{}).Where("chat_id = ?", chatID).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrChatNotFound
	}
	return nil
}

func (s *GormStore) AddMessage(ctx context.Context, msg *models.MessageRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ChatRecord{}).Where("chat_id = ?", msg.ChatID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return models.ErrChatNotFound
		}
		return tx.Create(msg).Error
	})
}

func (s *GormStore) Messages(ctx context.Context, chatID string) ([]models.MessageRecord, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	var msgs []models.MessageRecord
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}
