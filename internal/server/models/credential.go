package models

import (
	"slices"
	"time"
)

// Category is the closed set of credential categories.
type Category string

const (
	CategorySocial        Category = "social"
	CategoryWork          Category = "work"
	CategoryFinance       Category = "finance"
	CategoryEntertainment Category = "entertainment"
	CategoryShopping      Category = "shopping"
	CategoryOther         Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategorySocial, CategoryWork, CategoryFinance,
	CategoryEntertainment, CategoryShopping, CategoryOther,
}

func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Credential is a stored login. The secret only ever exists here sealed, as
// Ciphertext and IV.
type Credential struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"-"`
	Title        string     `json:"title"`
	Website      string     `json:"website"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Notes        string     `json:"notes"`
	Category     Category   `json:"category"`
	Tags         []string   `json:"tags"`
	IsFavorite   bool       `json:"isFavorite"`
	Ciphertext   []byte     `json:"-"`
	IV           []byte     `json:"-"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DecryptedCredential is a credential with its secret opened for one response.
type DecryptedCredential struct {
	Credential
	Password string `json:"password"`
}

// CredentialInput is the data needed to create a credential.
type CredentialInput struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Website    string   `json:"website" validate:"max=2048"`
	Username   string   `json:"username" validate:"max=200"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Password   string   `json:"password" validate:"required"`
	Notes      string   `json:"notes" validate:"max=10000"`
	Category   Category `json:"category"`
	Tags       []string `json:"tags"`
	IsFavorite bool     `json:"isFavorite"`
}

// CredentialPatch is a partial update. Nil fields are left unchanged;
// Password is handled by the caller since it has to be sealed.
type CredentialPatch struct {
	Title      *string   `json:"title"`
	Website    *string   `json:"website"`
	Username   *string   `json:"username"`
	Email      *string   `json:"email"`
	Notes      *string   `json:"notes"`
	Category   *Category `json:"category"`
	Tags       *[]string `json:"tags"`
	IsFavorite *bool     `json:"isFavorite"`
	Password   *string   `json:"password"`
}

// Apply returns c with the patch merged in. c itself is not modified.
func (p CredentialPatch) Apply(c Credential) Credential {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Website != nil {
		c.Website = *p.Website
	}
	if p.Username != nil {
		c.Username = *p.Username
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Tags != nil {
		c.Tags = slices.Clone(*p.Tags)
	} else {
		c.Tags = slices.Clone(c.Tags)
	}
	if p.IsFavorite != nil {
		c.IsFavorite = *p.IsFavorite
	}
	return c
}

// BulkPatch is the metadata-only update applied to several credentials at once.
type BulkPatch struct {
	Category   *Category `json:"category"`
	Tags       *[]string `json:"tags"`
	IsFavorite *bool     `json:"isFavorite"`
}

func (p BulkPatch) Empty() bool {
	return p.Category == nil && p.Tags == nil && p.IsFavorite == nil
}

// Sort keys accepted by CredentialFilter.SortBy.
const (
	SortTitle        = "title"
	SortWebsite      = "website"
	SortCategory     = "category"
	SortCreatedAt    = "createdAt"
	SortUpdatedAt    = "updatedAt"
	SortLastAccessed = "lastAccessed"
)

var sortKeys = []string{SortTitle, SortWebsite, SortCategory, SortCreatedAt, SortUpdatedAt, SortLastAccessed}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// CredentialFilter selects and orders a page of credentials.
type CredentialFilter struct {
	Search   string
	Category Category // empty or "all" means any
	Favorite *bool
	Tags     []string // match any
	SortBy   string
	SortDesc bool
	Page     int
	Limit    int
}

// Normalize fills defaults: page 1, limit 10, newest updates first.
func (f CredentialFilter) Normalize() CredentialFilter {
	if f.Category == "all" {
		f.Category = ""
	}
	if !slices.Contains(sortKeys, f.SortBy) {
		f.SortBy = SortUpdatedAt
		f.SortDesc = true
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

func (f CredentialFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// CredentialPage is one page of a listing plus the unpaged total.
type CredentialPage struct {
	Items []Credential `json:"passwords"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Pages int          `json:"pages"`
}

type CredentialStats struct {
	Total      int              `json:"total"`
	Favorites  int              `json:"favorites"`
	Categories map[Category]int `json:"categories"`
}
