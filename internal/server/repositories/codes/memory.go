package codes

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
)

type key struct {
	email   string
	purpose models.Purpose
}

type MemoryRepository struct {
	mu    sync.Mutex
	items map[key]models.OneTimeCode
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[key]models.OneTimeCode), now: time.Now}
}

func copyCode(c models.OneTimeCode) *models.OneTimeCode {
	if c.Staged != nil {
		s := *c.Staged
		c.Staged = &s
	}
	if c.VerifiedAt != nil {
		v := *c.VerifiedAt
		c.VerifiedAt = &v
	}
	return &c
}

func (r *MemoryRepository) Replace(_ context.Context, c *models.OneTimeCode) (*models.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c.ID = uuid.NewString()
	c.State = models.CodePending
	c.Attempts = 0
	c.VerifiedAt = nil
	c.CreatedAt, c.UpdatedAt = now, now

	r.items[key{c.Email, c.Purpose}] = *copyCode(*c)
	return c, nil
}

func (r *MemoryRepository) Find(_ context.Context, email string, purpose models.Purpose) (*models.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[key{email, purpose}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyCode(c), nil
}

// current returns the stored record when it still matches what the caller saw.
func (r *MemoryRepository) current(c *models.OneTimeCode, maxAttempts int) (key, models.OneTimeCode, bool) {
	k := key{c.Email, c.Purpose}
	cur, ok := r.items[k]
	if !ok || cur.ID != c.ID || cur.State != c.State || cur.Attempts >= maxAttempts {
		return k, cur, false
	}
	return k, cur, true
}

func (r *MemoryRepository) RecordFailure(_ context.Context, c *models.OneTimeCode, maxAttempts int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, cur, ok := r.current(c, maxAttempts)
	if !ok {
		return 0, common.ErrVersionConflict
	}
	cur.Attempts++
	cur.UpdatedAt = r.now()
	r.items[k] = cur
	return cur.Attempts, nil
}

func (r *MemoryRepository) Transition(_ context.Context, c *models.OneTimeCode, to models.CodeState, at time.Time, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, cur, ok := r.current(c, maxAttempts)
	if !ok || (cur.State == models.CodePending && !at.Before(cur.ExpiresAt)) {
		return common.ErrVersionConflict
	}
	cur.State = to
	if to == models.CodeVerified {
		cur.VerifiedAt = &at
	}
	cur.UpdatedAt = r.now()
	r.items[k] = cur
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, email string, purpose models.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key{email, purpose})
	return nil
}

func (r *MemoryRepository) DeleteByEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.items {
		if k.email == email {
			delete(r.items, k)
		}
	}
	return nil
}
