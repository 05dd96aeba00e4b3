package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatBindingRepository interface {
	FindBySuffix(ctx context.Context, suffix string) (*domain.ChatBinding, error)
	Upsert(ctx context.Context, binding *domain.ChatBinding) error
}

type GormChatBindingRepo struct {
	db *gorm.DB
}

func NewGormChatBindingRepo(db *gorm.DB) *GormChatBindingRepo {
	return &GormChatBindingRepo{db: db}
}

func (r *GormChatBindingRepo) FindBySuffix(ctx context.Context, suffix string) (*domain.ChatBinding, error) {
	if suffix == "" {
		return nil, domain.ErrNotFound
	}

	var model ChatBindingModel
	err := r.db.WithContext(ctx).
		Where("telefono LIKE ?", "%"+suffix).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chatBindingModelToDomain(&model), nil
}

// Upsert registers a phone or moves it to a new chat.
func (r *GormChatBindingRepo) Upsert(ctx context.Context, binding *domain.ChatBinding) error {
	if binding == nil {
		return domain.ErrValidation
	}
	if err := binding.Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telefono"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id"}),
		}).
		Create(chatBindingModelFromDomain(binding)).Error
}
