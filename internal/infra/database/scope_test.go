package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	return db, mock
}

func TestScopeRunClosesHandle(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectClose()

	scope := NewScope(func(context.Context) (*gorm.DB, error) { return db, nil }, 3, 0, nil)

	called := false
	err := scope.Run(context.Background(), func(got *gorm.DB) error {
		called = got == db
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !called {
		t.Fatal("expected fn to receive the opened handle")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestScopeRunClosesHandleOnError(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectClose()

	opens := 0
	scope := NewScope(func(context.Context) (*gorm.DB, error) {
		opens++
		return db, nil
	}, 3, 0, nil)

	workErr := errors.New("query failed")
	err := scope.Run(context.Background(), func(*gorm.DB) error { return workErr })
	if !errors.Is(err, workErr) {
		t.Fatalf("Run() error = %v, want %v", err, workErr)
	}
	if opens != 1 {
		t.Fatalf("opens = %d, want 1 (work errors are not retried)", opens)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestScopeRetriesAcquisition(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectClose()

	opens := 0
	var slept []time.Duration
	scope := NewScope(func(context.Context) (*gorm.DB, error) {
		opens++
		if opens < 3 {
			return nil, errors.New("connection refused")
		}
		return db, nil
	}, 3, 5*time.Second, nil)
	scope.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if err := scope.Run(context.Background(), func(*gorm.DB) error { return nil }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if opens != 3 {
		t.Fatalf("opens = %d, want 3", opens)
	}
	if len(slept) != 2 || slept[0] != 5*time.Second {
		t.Fatalf("unexpected sleeps: %v", slept)
	}
}

func TestScopeGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	openErr := errors.New("connection refused")
	opens := 0
	scope := NewScope(func(context.Context) (*gorm.DB, error) {
		opens++
		return nil, openErr
	}, 2, 0, nil)
	scope.sleep = func(context.Context, time.Duration) error { return nil }

	called := false
	err := scope.Run(context.Background(), func(*gorm.DB) error {
		called = true
		return nil
	})
	if !errors.Is(err, openErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, openErr)
	}
	if called {
		t.Fatal("fn must not run without a connection")
	}
	if opens != 2 {
		t.Fatalf("opens = %d, want 2", opens)
	}
}

func TestScopeStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scope := NewScope(func(context.Context) (*gorm.DB, error) {
		return nil, errors.New("connection refused")
	}, 3, time.Second, nil)

	err := scope.Run(ctx, func(*gorm.DB) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestDialectorFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		driver  string
		dsn     string
		wantErr bool
		name    string
	}{
		{driver: "mysql", dsn: "user:pass@tcp(localhost:3306)/db", name: "mysql"},
		{driver: "", dsn: "user:pass@tcp(localhost:3306)/db", name: "mysql"},
		{driver: "postgres", dsn: "host=localhost", name: "postgres"},
		{driver: "sqlite", dsn: "file.db", wantErr: true},
		{driver: "mysql", dsn: " ", wantErr: true},
	}

	for _, tc := range tests {
		d, err := dialectorFor(tc.driver, tc.dsn)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("dialectorFor(%q, %q) expected error", tc.driver, tc.dsn)
			}
			continue
		}
		if err != nil {
			t.Fatalf("dialectorFor(%q) error = %v", tc.driver, err)
		}
		if d.Name() != tc.name {
			t.Fatalf("dialector name = %q, want %q", d.Name(), tc.name)
		}
	}
}

func TestWithConnection(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE mensaje_a_sms").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	err := WithConnection(context.Background(), func(context.Context) (*gorm.DB, error) { return db, nil }, 1, 0,
		func(db *gorm.DB) error {
			return db.Exec("UPDATE mensaje_a_sms SET men_status = 1 WHERE id = 1").Error
		})
	if err != nil {
		t.Fatalf("WithConnection() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
