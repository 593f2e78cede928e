// Package accounts persists registered accounts: identity, the two password
// hashes, 2FA flag, master password failure counter and settings.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

// Repository returns common.ErrorNotFound for unknown ids/emails and
// common.ErrDuplicateAccount when the email is taken.
type Repository interface {
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	UpdateProfile(ctx context.Context, id, firstName, lastName string) error
	UpdateLoginHash(ctx context.Context, id, hash string) error
	UpdateMasterHash(ctx context.Context, id, hash string) error
	SetTwoFactor(ctx context.Context, id string, enabled bool) error
	UpdateSettings(ctx context.Context, id string, s models.AccountSettings) error

	// RecordLogin stamps last_login and clears the master failure counter.
	RecordLogin(ctx context.Context, id string, at time.Time) error
	// RecordMasterFailure atomically increments the master failure counter
	// and returns the new value.
	RecordMasterFailure(ctx context.Context, id string, at time.Time) (int, error)
	ResetMasterFailures(ctx context.Context, id string) error

	Delete(ctx context.Context, id string) error
}
