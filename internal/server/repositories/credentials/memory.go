package credentials

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// MemoryRepository keeps credentials in a map. Search folds case with
// x/text so it agrees with ILIKE for non-ASCII input.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*models.Credential
	fold  cases.Caser
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]*models.Credential),
		fold:  cases.Fold(),
		now:   time.Now,
	}
}

func clone(c *models.Credential) models.Credential {
	out := *c
	out.Tags = slices.Clone(c.Tags)
	out.Ciphertext = slices.Clone(c.Ciphertext)
	out.IV = slices.Clone(c.IV)
	return out
}

func (r *MemoryRepository) owned(ownerID, id string) (*models.Credential, bool) {
	c, ok := r.items[id]
	if !ok || c.AccountID != ownerID {
		return nil, false
	}
	return c, true
}

func (r *MemoryRepository) Create(_ context.Context, c *models.Credential) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Tags == nil {
		c.Tags = []string{}
	}

	stored := clone(c)
	r.items[c.ID] = &stored
	return c, nil
}

func (r *MemoryRepository) Get(_ context.Context, ownerID, id string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.owned(ownerID, id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := clone(c)
	return &out, nil
}

func (r *MemoryRepository) Update(_ context.Context, c *models.Credential) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.owned(c.AccountID, c.ID)
	if !ok {
		return nil, common.ErrorNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.LastAccessed = existing.LastAccessed
	c.UpdatedAt = r.now()

	stored := clone(c)
	r.items[c.ID] = &stored
	return c, nil
}

func (r *MemoryRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owned(ownerID, id); !ok {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) DeleteByOwner(_ context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.items {
		if c.AccountID == ownerID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *MemoryRepository) matches(c *models.Credential, f models.CredentialFilter, needle string) bool {
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Favorite != nil && c.IsFavorite != *f.Favorite {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(c.Tags, func(t string) bool { return slices.Contains(f.Tags, t) }) {
		return false
	}
	if needle == "" {
		return true
	}

	fields := append([]string{c.Title, c.Website, c.Username, c.Email, c.Notes}, c.Tags...)
	for _, v := range fields {
		if strings.Contains(r.fold.String(v), needle) {
			return true
		}
	}
	return false
}

func compareBy(key string) func(a, b models.Credential) int {
	switch key {
	case models.SortTitle:
		return func(a, b models.Credential) int { return cmp.Compare(a.Title, b.Title) }
	case models.SortWebsite:
		return func(a, b models.Credential) int { return cmp.Compare(a.Website, b.Website) }
	case models.SortCategory:
		return func(a, b models.Credential) int { return cmp.Compare(a.Category, b.Category) }
	case models.SortCreatedAt:
		return func(a, b models.Credential) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case models.SortLastAccessed:
		return func(a, b models.Credential) int {
			if a.LastAccessed == nil || b.LastAccessed == nil {
				return 0
			}
			return a.LastAccessed.Compare(*b.LastAccessed)
		}
	default:
		return func(a, b models.Credential) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	}
}

func (r *MemoryRepository) List(_ context.Context, ownerID string, f models.CredentialFilter) ([]models.Credential, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := r.fold.String(strings.TrimSpace(f.Search))
	all := make([]models.Credential, 0)
	for _, c := range r.items {
		if c.AccountID == ownerID && r.matches(c, f, needle) {
			all = append(all, clone(c))
		}
	}

	by := compareBy(f.SortBy)
	slices.SortFunc(all, func(a, b models.Credential) int {
		// NULLS LAST in either direction, as the SQL ordering does.
		if f.SortBy == models.SortLastAccessed && (a.LastAccessed == nil) != (b.LastAccessed == nil) {
			if a.LastAccessed == nil {
				return 1
			}
			return -1
		}
		n := by(a, b)
		if f.SortDesc {
			n = -n
		}
		if n == 0 {
			n = cmp.Compare(a.ID, b.ID)
		}
		return n
	})

	total := len(all)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return all[start:end], total, nil
}

func (r *MemoryRepository) ListAll(ctx context.Context, ownerID string) ([]models.Credential, error) {
	items, _, err := r.List(ctx, ownerID, models.CredentialFilter{SortBy: models.SortTitle, Page: 1, Limit: int(^uint(0) >> 1)})
	return items, err
}

func (r *MemoryRepository) FindByTitleWebsite(_ context.Context, ownerID, title, website string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *models.Credential
	for _, c := range r.items {
		if c.AccountID != ownerID || c.Title != title || c.Website != website {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	out := clone(found)
	return &out, nil
}

func (r *MemoryRepository) ToggleFavorite(_ context.Context, ownerID, id string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.owned(ownerID, id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	c.IsFavorite = !c.IsFavorite
	c.UpdatedAt = r.now()
	out := clone(c)
	return &out, nil
}

func (r *MemoryRepository) TouchAccessed(_ context.Context, ownerID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.owned(ownerID, id)
	if !ok {
		return common.ErrorNotFound
	}
	c.LastAccessed = &at
	return nil
}

func (r *MemoryRepository) Stats(_ context.Context, ownerID string) (*models.CredentialStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &models.CredentialStats{Categories: make(map[models.Category]int)}
	for _, c := range r.items {
		if c.AccountID != ownerID {
			continue
		}
		stats.Total++
		stats.Categories[c.Category]++
		if c.IsFavorite {
			stats.Favorites++
		}
	}
	return stats, nil
}

func (r *MemoryRepository) Tags(_ context.Context, ownerID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, 0)
	for _, c := range r.items {
		if c.AccountID != ownerID {
			continue
		}
		for _, t := range c.Tags {
			if t != "" && !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
	}
	slices.Sort(tags)
	return tags, nil
}

func (r *MemoryRepository) BulkUpdate(_ context.Context, ownerID string, ids []string, p models.BulkPatch) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		c, ok := r.owned(ownerID, id)
		if !ok {
			continue
		}
		if p.Category != nil {
			c.Category = *p.Category
		}
		if p.Tags != nil {
			c.Tags = slices.Clone(*p.Tags)
		}
		if p.IsFavorite != nil {
			c.IsFavorite = *p.IsFavorite
		}
		c.UpdatedAt = r.now()
		n++
	}
	return n, nil
}

func (r *MemoryRepository) BulkDelete(_ context.Context, ownerID string, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := r.owned(ownerID, id); ok {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}
