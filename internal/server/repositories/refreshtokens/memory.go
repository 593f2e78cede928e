package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps tokens in a map; used with DatabaseDSN "memory"
// and in tests.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]models.RefreshToken)}
}

func (r *MemoryRepository) Create(_ context.Context, accountID string, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens[token] = models.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Token:     token,
		Expires:   now.Add(validity),
		CreatedAt: now,
	}
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
	return nil
}

func (r *MemoryRepository) DeleteByAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, t := range r.tokens {
		if t.AccountID == accountID {
			delete(r.tokens, k)
		}
	}
	return nil
}
