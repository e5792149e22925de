package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docchat/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateWithFile creates the file record and its chat in one transaction, so
// a failure on either side leaves no orphan chat behind.
func (r *ChatRepository) CreateWithFile(file *model.File, chat *model.Chat) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		chat.FileID = file.ID
		return tx.Create(chat).Error
	})
	if err != nil {
		return fmt.Errorf("create chat with file failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(chatID uint) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.Where("id = ?", chatID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepository) List() ([]model.Chat, error) {
	var chats []model.Chat
	if err := r.db.Order("created_at DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) DeleteByID(chatID uint) error {
	if err := r.db.Where("id = ?", chatID).Delete(&model.Chat{}).Error; err != nil {
		return fmt.Errorf("delete chat failed: %w", err)
	}
	return nil
}
