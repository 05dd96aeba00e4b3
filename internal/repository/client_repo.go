package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"gorm.io/gorm"
)

type ClientRepository interface {
	PhonesByCode(ctx context.Context, code string) ([]string, error)
	EmailsByCode(ctx context.Context, code string) ([]string, error)
	AlarmContact(ctx context.Context, table string, code string) (*domain.Recipient, error)
}

type GormClientRepo struct {
	db *gorm.DB
}

func NewGormClientRepo(db *gorm.DB) *GormClientRepo {
	return &GormClientRepo{db: db}
}

// PhonesByCode returns the subscriber's mobile numbers. An unknown client or
// a blank field yields an empty slice, not an error.
func (r *GormClientRepo) PhonesByCode(ctx context.Context, code string) ([]string, error) {
	return r.contactField(ctx, "CLI_CELULAR", code)
}

func (r *GormClientRepo) EmailsByCode(ctx context.Context, code string) ([]string, error) {
	return r.contactField(ctx, "cli_mail", code)
}

func (r *GormClientRepo) contactField(ctx context.Context, column string, code string) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Model(&ClientModel{}).
		Where("cli_codigo = ?", code).
		Limit(1).
		Pluck(column, &values).Error
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return domain.SplitRecipients(values[0]), nil
}

// AlarmContact loads the per-client alarm contact from clientes_whatsapp or
// clientes_llamada.
func (r *GormClientRepo) AlarmContact(ctx context.Context, table string, code string) (*domain.Recipient, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	var model AlarmContactModel
	err := r.db.WithContext(ctx).
		Table(table).
		Where("abonado = ?", code).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return alarmContactModelToDomain(&model), nil
}
