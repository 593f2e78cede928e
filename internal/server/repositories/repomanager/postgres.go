package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/server/migrations"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/codes"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/refreshtokens"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager binds the Postgres repositories either to the
// pool or, inside WithTx, to a single transaction.
type PostgresRepositoryManager struct {
	db   *sql.DB
	q    dbx.DBTX
	inTx bool
	opts options
}

func NewPostgresRepositoryManager(db *sql.DB, opts ...Option) (*PostgresRepositoryManager, error) {
	m := &PostgresRepositoryManager{db: db, q: db}
	for _, o := range opts {
		o(&m.opts)
	}
	return m, nil
}

func (m *PostgresRepositoryManager) Accounts() accounts.Repository {
	return accounts.NewPostgresRepository(m.q)
}

func (m *PostgresRepositoryManager) Credentials() credentials.Repository {
	return credentials.NewPostgresRepository(m.q)
}

func (m *PostgresRepositoryManager) Codes() codes.Repository {
	if m.opts.codes != nil {
		return m.opts.codes
	}
	return codes.NewPostgresRepository(m.q)
}

func (m *PostgresRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(m.q)
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, m RepositoryManager) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &PostgresRepositoryManager{db: m.db, q: tx, inTx: true, opts: m.opts})
	})
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, m.db, ".")
}
