package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"gorm.io/gorm"
)

// minOutboxColumns is id, body, an unused destination column and client code.
const minOutboxColumns = 4

type OutboxRepository interface {
	FetchPending(ctx context.Context, table string, limit int) ([]domain.OutboxMessage, error)
	MarkProcessed(ctx context.Context, table string, id int64) error
}

type GormOutboxRepo struct {
	db *gorm.DB
}

func NewGormOutboxRepo(db *gorm.DB) *GormOutboxRepo {
	return &GormOutboxRepo{db: db}
}

// FetchPending reads unprocessed rows in whatever order the database returns
// them. Columns are decoded by position: 0 id, 1 body, 3 client code. Any
// trailing columns are ignored.
func (r *GormOutboxRepo) FetchPending(ctx context.Context, table string, limit int) ([]domain.OutboxMessage, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE men_status = ? LIMIT ?", table)
	rows, err := r.db.WithContext(ctx).Raw(query, int(domain.OutboxPending), limit).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) < minOutboxColumns {
		return nil, fmt.Errorf("%w: table %s has %d columns, need at least %d",
			domain.ErrValidation, table, len(columns), minOutboxColumns)
	}

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	messages := make([]domain.OutboxMessage, 0, limit)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		id, err := strconv.ParseInt(strings.TrimSpace(values[0].String), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row id %q is not numeric", domain.ErrValidation, table, values[0].String)
		}

		messages = append(messages, domain.OutboxMessage{
			ID:         id,
			Body:       values[1].String,
			ClientCode: strings.TrimSpace(values[3].String),
			Status:     domain.OutboxPending,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *GormOutboxRepo) MarkProcessed(ctx context.Context, table string, id int64) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET men_status = ? WHERE id = ?", table)
	return r.db.WithContext(ctx).Exec(query, int(domain.OutboxProcessed), id).Error
}
