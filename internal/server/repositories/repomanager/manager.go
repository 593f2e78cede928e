// Package repomanager hands out the repositories of one storage backend and
// runs groups of repository calls atomically.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/securepass/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/codes"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/refreshtokens"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error

	Accounts() accounts.Repository
	Credentials() credentials.Repository
	Codes() codes.Repository
	RefreshTokens() refreshtokens.Repository

	// WithTx calls fn with a manager whose repositories share one
	// transaction. Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, m RepositoryManager) error) error
}

// Option customizes a manager at construction.
type Option func(*options)

type options struct {
	codes codes.Repository
}

// WithCodeRepository makes the manager use r for one-time codes instead of
// the backend's own table, e.g. Redis.
func WithCodeRepository(r codes.Repository) Option {
	return func(o *options) { o.codes = r }
}
