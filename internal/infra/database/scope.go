package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Opener acquires a fresh database handle.
type Opener func(ctx context.Context) (*gorm.DB, error)

// Scope opens a connection for the duration of one unit of work and always
// releases it. Only acquisition is retried; errors returned by the work
// itself are passed through untouched.
type Scope struct {
	open    Opener
	retries int
	delay   time.Duration
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewScope(open Opener, retries int, delay time.Duration, logger *zap.Logger) *Scope {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 1 {
		retries = 1
	}
	return &Scope{
		open:    open,
		retries: retries,
		delay:   delay,
		logger:  logger,
		sleep:   sleepWithContext,
	}
}

// Run acquires a handle, runs fn with it and closes the handle on every path.
func (s *Scope) Run(ctx context.Context, fn func(db *gorm.DB) error) error {
	if s == nil || s.open == nil {
		return fmt.Errorf("database scope is not initialized")
	}

	db, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := Close(db); err != nil {
			s.logger.Warn("failed to close database handle", zap.Error(err))
		}
	}()

	return fn(db)
}

func (s *Scope) acquire(ctx context.Context) (*gorm.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		db, err := s.open(ctx)
		if err == nil {
			return db, nil
		}
		lastErr = err

		s.logger.Warn("database connection failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.retries),
			zap.Error(err),
		)

		if attempt == s.retries {
			break
		}
		if err := s.sleep(ctx, s.delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to acquire database connection after %d attempts: %w", s.retries, lastErr)
}

// WithConnection is a one-shot Scope.Run.
func WithConnection(ctx context.Context, open Opener, retries int, delay time.Duration, fn func(db *gorm.DB) error) error {
	return NewScope(open, retries, delay, nil).Run(ctx, fn)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
