package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docchat/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) GetByID(id uint) (*model.File, error) {
	var file model.File
	if err := r.db.Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) UpdateStatus(id uint, status string) error {
	if err := r.db.Model(&model.File{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return fmt.Errorf("update file status failed: %w", err)
	}
	return nil
}
