package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Vault seals single secret values. *cryptox.Vault implements it.
type Vault interface {
	Seal(plaintext string) (cryptox.Sealed, error)
	Open(s cryptox.Sealed) (string, error)
}

// CredentialService is the owner-scoped surface over stored credentials.
// Plaintext secrets only leave it through GetDecrypted, and only for a
// context granted by MasterKeyGate.Require.
type CredentialService struct {
	m     repomanager.RepositoryManager
	vault Vault
	now   func() time.Time
	log   logging.Logger
}

func NewCredentialService(m repomanager.RepositoryManager, vault Vault, log logging.Logger) *CredentialService {
	return &CredentialService{m: m, vault: vault, now: time.Now, log: log.With("module", "credentials")}
}

// checkID maps malformed ids to ErrorNotFound; they cannot name a record.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	return nil
}

// matchKey is the stored form of title and website. Import matches on it,
// so composed and decomposed spellings compare equal.
func matchKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *CredentialService) seal(c *models.Credential, secret string) error {
	sealed, err := s.vault.Seal(secret)
	if err != nil {
		return err
	}
	c.Ciphertext, c.IV = sealed.Ciphertext, sealed.IV
	return nil
}

func sealedOf(c *models.Credential) cryptox.Sealed {
	return cryptox.Sealed{Ciphertext: c.Ciphertext, IV: c.IV}
}

func (s *CredentialService) open(c *models.Credential) (string, error) {
	return s.vault.Open(sealedOf(c))
}

func (s *CredentialService) List(ctx context.Context, ownerID string, f models.CredentialFilter) (*models.CredentialPage, error) {
	f = f.Normalize()
	items, total, err := s.m.Credentials().List(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	return &models.CredentialPage{
		Items: items,
		Total: total,
		Page:  f.Page,
		Limit: f.Limit,
		Pages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

// GetDecrypted returns the record with its secret opened and stamps
// lastAccessed.
func (s *CredentialService) GetDecrypted(ctx context.Context, ownerID, id string) (*models.DecryptedCredential, error) {
	if err := requireGrant(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	c, err := s.m.Credentials().Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	secret, err := s.open(c)
	if err != nil {
		s.log.Error(ctx, "cannot open credential", "id", id, "error", err)
		return nil, err
	}

	now := s.now()
	if err := s.m.Credentials().TouchAccessed(ctx, ownerID, id, now); err != nil {
		return nil, err
	}
	c.LastAccessed = &now
	return &models.DecryptedCredential{Credential: *c, Password: secret}, nil
}

func (s *CredentialService) Create(ctx context.Context, ownerID string, in models.CredentialInput) (*models.Credential, error) {
	if err := requireGrant(ctx, ownerID); err != nil {
		return nil, err
	}
	in.Title = matchKey(in.Title)
	in.Website = matchKey(in.Website)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Category == "" {
		in.Category = models.CategoryOther
	}
	if !in.Category.Valid() {
		return nil, common.Validationf("unknown category %q", in.Category)
	}

	c := &models.Credential{
		AccountID:  ownerID,
		Title:      in.Title,
		Website:    in.Website,
		Username:   in.Username,
		Email:      in.Email,
		Notes:      in.Notes,
		Category:   in.Category,
		Tags:       cleanTags(in.Tags),
		IsFavorite: in.IsFavorite,
	}
	if err := s.seal(c, in.Password); err != nil {
		return nil, err
	}
	return s.m.Credentials().Create(ctx, c)
}

func validatePatch(p models.CredentialPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return common.Validationf("title must not be empty")
	}
	if p.Password != nil && *p.Password == "" {
		return common.Validationf("password must not be empty")
	}
	if p.Category != nil && !p.Category.Valid() {
		return common.Validationf("unknown category %q", *p.Category)
	}
	if p.Email != nil && *p.Email != "" {
		if err := validate.Var(*p.Email, "email"); err != nil {
			return common.Validationf("email failed email")
		}
	}
	return nil
}

// Update applies p; the secret is re-sealed only when p carries one.
func (s *CredentialService) Update(ctx context.Context, ownerID, id string, p models.CredentialPatch) (*models.Credential, error) {
	if err := requireGrant(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := validatePatch(p); err != nil {
		return nil, err
	}

	var out *models.Credential
	err := s.m.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		existing, err := m.Credentials().Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		next := p.Apply(*existing)
		next.Title = matchKey(next.Title)
		next.Website = matchKey(next.Website)
		next.Tags = cleanTags(next.Tags)
		if p.Password != nil {
			if err := s.seal(&next, *p.Password); err != nil {
				return err
			}
		}
		out, err = m.Credentials().Update(ctx, &next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CredentialService) Delete(ctx context.Context, ownerID, id string) error {
	if err := requireGrant(ctx, ownerID); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}
	return s.m.Credentials().Delete(ctx, ownerID, id)
}

func (s *CredentialService) ToggleFavorite(ctx context.Context, ownerID, id string) (*models.Credential, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.m.Credentials().ToggleFavorite(ctx, ownerID, id)
}

func (s *CredentialService) Stats(ctx context.Context, ownerID string) (*models.CredentialStats, error) {
	return s.m.Credentials().Stats(ctx, ownerID)
}

func (s *CredentialService) Tags(ctx context.Context, ownerID string) ([]string, error) {
	return s.m.Credentials().Tags(ctx, ownerID)
}

func (s *CredentialService) Categories() []models.Category {
	return slices.Clone(models.Categories)
}

func validIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, common.Validationf("ids must not be empty")
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if checkID(id) == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

// BulkUpdate changes metadata on the owner's records among ids and returns
// how many matched. Foreign or unknown ids are ignored.
func (s *CredentialService) BulkUpdate(ctx context.Context, ownerID string, ids []string, p models.BulkPatch) (int, error) {
	if p.Empty() {
		return 0, common.Validationf("nothing to update")
	}
	if p.Category != nil && !p.Category.Valid() {
		return 0, common.Validationf("unknown category %q", *p.Category)
	}
	if p.Tags != nil {
		tags := cleanTags(*p.Tags)
		p.Tags = &tags
	}
	ids, err := validIDs(ids)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.m.Credentials().BulkUpdate(ctx, ownerID, ids, p)
}

func (s *CredentialService) BulkDelete(ctx context.Context, ownerID string, ids []string) (int, error) {
	if err := requireGrant(ctx, ownerID); err != nil {
		return 0, err
	}
	ids, err := validIDs(ids)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.m.Credentials().BulkDelete(ctx, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}
	s.log.Info(ctx, "bulk delete", "account", ownerID, "deleted", n)
	return n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
