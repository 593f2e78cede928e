// Package refreshtokens stores the opaque refresh tokens that back session
// renewal.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type Repository interface {
	// Create stores token for accountID, valid until now+validity.
	Create(ctx context.Context, accountID string, token string, validity time.Duration) error

	// Find returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes one token; a missing token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteByAccount revokes every token of accountID.
	DeleteByAccount(ctx context.Context, accountID string) error
}
