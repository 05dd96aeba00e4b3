package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories bound to one database handle.
type Store struct {
	Outbox       OutboxRepository
	Clients      ClientRepository
	Chats        ChatBindingRepository
	Observations ObservationRepository
}

func NewStore(db *gorm.DB, observationsTable string) *Store {
	return &Store{
		Outbox:       NewGormOutboxRepo(db),
		Clients:      NewGormClientRepo(db),
		Chats:        NewGormChatBindingRepo(db),
		Observations: NewGormObservationRepo(db, observationsTable),
	}
}

// Acquirer hands out a Store whose connection lives only for fn.
type Acquirer interface {
	WithStore(ctx context.Context, fn func(store *Store) error) error
}

// ConnScope is satisfied by *database.Scope.
type ConnScope interface {
	Run(ctx context.Context, fn func(db *gorm.DB) error) error
}

type ScopedStore struct {
	scope             ConnScope
	observationsTable string
}

func NewScopedStore(s ConnScope, observationsTable string) *ScopedStore {
	return &ScopedStore{scope: s, observationsTable: observationsTable}
}

func (s *ScopedStore) WithStore(ctx context.Context, fn func(store *Store) error) error {
	return s.scope.Run(ctx, func(db *gorm.DB) error {
		return fn(NewStore(db, s.observationsTable))
	})
}
