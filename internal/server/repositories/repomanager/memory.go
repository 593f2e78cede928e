package repomanager

import (
	"context"

	"github.com/dmitrijs2005/securepass/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/codes"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/refreshtokens"
)

// MemoryRepositoryManager keeps everything in process. WithTx gives no
// rollback: each repository call is atomic on its own.
type MemoryRepositoryManager struct {
	accounts      *accounts.MemoryRepository
	credentials   *credentials.MemoryRepository
	codes         codes.Repository
	refreshTokens *refreshtokens.MemoryRepository
}

func NewMemoryRepositoryManager(opts ...Option) *MemoryRepositoryManager {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	m := &MemoryRepositoryManager{
		accounts:      accounts.NewMemoryRepository(),
		credentials:   credentials.NewMemoryRepository(),
		codes:         o.codes,
		refreshTokens: refreshtokens.NewMemoryRepository(),
	}
	if m.codes == nil {
		m.codes = codes.NewMemoryRepository()
	}
	return m
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Accounts() accounts.Repository           { return m.accounts }
func (m *MemoryRepositoryManager) Credentials() credentials.Repository     { return m.credentials }
func (m *MemoryRepositoryManager) Codes() codes.Repository                 { return m.codes }
func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository { return m.refreshTokens }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, m RepositoryManager) error) error {
	return fn(ctx, m)
}
