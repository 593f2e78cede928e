package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*models.Account
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[a.Email]; taken {
		return nil, common.ErrDuplicateAccount
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now

	stored := *a
	r.byID[a.ID] = &stored
	r.byEmail[a.Email] = a.ID
	return a, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *a
	return &out, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	id, ok := r.byEmail[email]
	r.mu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.GetByID(ctx, id)
}

// update applies fn to the stored account under the lock.
func (r *MemoryRepository) update(id string, fn func(a *models.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(a)
	return nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id, firstName, lastName string) error {
	return r.update(id, func(a *models.Account) {
		a.FirstName, a.LastName = firstName, lastName
		a.UpdatedAt = time.Now()
	})
}

func (r *MemoryRepository) UpdateLoginHash(_ context.Context, id, hash string) error {
	return r.update(id, func(a *models.Account) {
		a.LoginHash = hash
		a.UpdatedAt = time.Now()
	})
}

func (r *MemoryRepository) UpdateMasterHash(_ context.Context, id, hash string) error {
	return r.update(id, func(a *models.Account) {
		a.MasterHash = hash
		a.MasterFailedAttempts = 0
		a.UpdatedAt = time.Now()
	})
}

func (r *MemoryRepository) SetTwoFactor(_ context.Context, id string, enabled bool) error {
	return r.update(id, func(a *models.Account) {
		a.TwoFactorEnabled = enabled
		a.UpdatedAt = time.Now()
	})
}

func (r *MemoryRepository) UpdateSettings(_ context.Context, id string, s models.AccountSettings) error {
	return r.update(id, func(a *models.Account) {
		a.Settings = s
		a.UpdatedAt = time.Now()
	})
}

func (r *MemoryRepository) RecordLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(a *models.Account) {
		a.LastLogin = &at
		a.MasterFailedAttempts = 0
	})
}

func (r *MemoryRepository) RecordMasterFailure(_ context.Context, id string, at time.Time) (int, error) {
	var n int
	err := r.update(id, func(a *models.Account) {
		a.MasterFailedAttempts++
		a.LastMasterAttempt = &at
		n = a.MasterFailedAttempts
	})
	return n, err
}

func (r *MemoryRepository) ResetMasterFailures(_ context.Context, id string) error {
	return r.update(id, func(a *models.Account) { a.MasterFailedAttempts = 0 })
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.byEmail, a.Email)
	delete(r.byID, id)
	return nil
}
