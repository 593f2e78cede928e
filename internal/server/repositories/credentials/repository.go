// Package credentials persists sealed credential records. Every query is
// scoped by owner: a record of another account behaves exactly like a
// missing one.
package credentials

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securepass/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Credential) (*models.Credential, error)
	Get(ctx context.Context, ownerID, id string) (*models.Credential, error)
	// Update overwrites every mutable column of c, including the sealed secret.
	Update(ctx context.Context, c *models.Credential) (*models.Credential, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) error

	// List returns one page for f (already normalized) and the unpaged total.
	List(ctx context.Context, ownerID string, f models.CredentialFilter) ([]models.Credential, int, error)
	// ListAll returns every record of the owner ordered by title.
	ListAll(ctx context.Context, ownerID string) ([]models.Credential, error)
	// FindByTitleWebsite returns the first record with exactly that pair.
	FindByTitleWebsite(ctx context.Context, ownerID, title, website string) (*models.Credential, error)

	ToggleFavorite(ctx context.Context, ownerID, id string) (*models.Credential, error)
	TouchAccessed(ctx context.Context, ownerID, id string, at time.Time) error

	Stats(ctx context.Context, ownerID string) (*models.CredentialStats, error)
	Tags(ctx context.Context, ownerID string) ([]string, error)

	BulkUpdate(ctx context.Context, ownerID string, ids []string, p models.BulkPatch) (int, error)
	BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error)
}
