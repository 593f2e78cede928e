// Package codes stores one-time codes. There is at most one record per
// (email, purpose); every conditional update is keyed by the record ID seen
// by the caller, so a code replaced in the meantime is never touched.
package codes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type Repository interface {
	// Replace assigns c a fresh ID and stores it as the only record for
	// (c.Email, c.Purpose), dropping any previous one.
	Replace(ctx context.Context, c *models.OneTimeCode) (*models.OneTimeCode, error)

	// Find returns common.ErrorNotFound when no record exists.
	Find(ctx context.Context, email string, purpose models.Purpose) (*models.OneTimeCode, error)

	// RecordFailure increments the attempt counter of c if the stored record
	// still has c's ID and state and is below maxAttempts. It returns the new
	// count, or common.ErrVersionConflict when the precondition failed.
	RecordFailure(ctx context.Context, c *models.OneTimeCode, maxAttempts int) (int, error)

	// Transition moves c from its observed state to `to` under the same
	// precondition as RecordFailure. A pending record must also be unexpired
	// at `at`. Moving to verified stamps VerifiedAt with `at`.
	Transition(ctx context.Context, c *models.OneTimeCode, to models.CodeState, at time.Time, maxAttempts int) error

	Delete(ctx context.Context, email string, purpose models.Purpose) error
	DeleteByEmail(ctx context.Context, email string) error
}
