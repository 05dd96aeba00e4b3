package repository

import (
	"context"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"gorm.io/gorm"
)

type ObservationRepository interface {
	Create(ctx context.Context, obs *domain.Observation) error
}

type GormObservationRepo struct {
	db    *gorm.DB
	table string
}

func NewGormObservationRepo(db *gorm.DB, table string) *GormObservationRepo {
	if table == "" {
		table = DefaultObservationsTable
	}
	return &GormObservationRepo{db: db, table: table}
}

func (r *GormObservationRepo) Create(ctx context.Context, obs *domain.Observation) error {
	if obs == nil {
		return domain.ErrValidation
	}
	if err := checkTable(r.table); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Table(r.table).Create(observationModelFromDomain(obs)).Error
}
