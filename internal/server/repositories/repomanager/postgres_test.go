package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/codes"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/refreshtokens"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var _ RepositoryManager = m
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, _ := NewPostgresRepositoryManager(db)

	if _, ok := m.Accounts().(*accounts.PostgresRepository); !ok {
		t.Fatal("Accounts() is not the postgres repository")
	}
	if _, ok := m.Credentials().(*credentials.PostgresRepository); !ok {
		t.Fatal("Credentials() is not the postgres repository")
	}
	if _, ok := m.Codes().(*codes.PostgresRepository); !ok {
		t.Fatal("Codes() is not the postgres repository")
	}
	if _, ok := m.RefreshTokens().(*refreshtokens.PostgresRepository); !ok {
		t.Fatal("RefreshTokens() is not the postgres repository")
	}
}

func TestWithCodeRepository_Overrides(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	override := codes.NewMemoryRepository()
	m, _ := NewPostgresRepositoryManager(db, WithCodeRepository(override))
	if m.Codes() != codes.Repository(override) {
		t.Fatal("Codes() ignored the override")
	}

	mem := NewMemoryRepositoryManager(WithCodeRepository(override))
	if mem.Codes() != codes.Repository(override) {
		t.Fatal("memory Codes() ignored the override")
	}
}

func TestWithTx_CommitsAndNests(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	m, _ := NewPostgresRepositoryManager(db)
	calls := 0
	err := m.WithTx(context.Background(), func(ctx context.Context, tm RepositoryManager) error {
		calls++
		if tm == RepositoryManager(m) {
			t.Fatal("expected a transaction-bound manager")
		}
		return tm.WithTx(ctx, func(context.Context, RepositoryManager) error {
			calls++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithTx error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	m, _ := NewPostgresRepositoryManager(db)
	err := m.WithTx(context.Background(), func(context.Context, RepositoryManager) error {
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestMemoryManager_SharesRepositories(t *testing.T) {
	m := NewMemoryRepositoryManager()
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := m.WithTx(context.Background(), func(_ context.Context, tm RepositoryManager) error {
		if tm.Accounts() != m.Accounts() || tm.Credentials() != m.Credentials() {
			t.Fatal("memory WithTx must reuse the same repositories")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
