package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/portable"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

// ImportPolicy decides what happens when an imported record has the same
// title and website as a stored one. With both flags off a duplicate is
// created.
type ImportPolicy struct {
	SkipDuplicates bool `json:"skipDuplicates"`
	UpdateExisting bool `json:"updateExisting"`
}

func DefaultImportPolicy() ImportPolicy {
	return ImportPolicy{SkipDuplicates: true}
}

type ImportError struct {
	Title string `json:"title"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int           `json:"imported"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Count       int
}

type importOutcome int

const (
	outcomeImported importOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

// TransferService exports a whole vault in the clear and imports one back,
// both behind the master password.
type TransferService struct {
	m     repomanager.RepositoryManager
	gate  *MasterKeyGate
	vault Vault
	now   func() time.Time
	log   logging.Logger
}

func NewTransferService(m repomanager.RepositoryManager, gate *MasterKeyGate, vault Vault, log logging.Logger) *TransferService {
	return &TransferService{m: m, gate: gate, vault: vault, now: time.Now, log: log.With("module", "transfer")}
}

// Export decrypts every record of the owner. One record that cannot be
// opened aborts the export with a *common.DecryptionError and no data.
func (s *TransferService) Export(ctx context.Context, ownerID, master string, f portable.Format) (*ExportResult, error) {
	ctx, err := s.gate.Require(ctx, ownerID, master)
	if err != nil {
		return nil, err
	}

	items, err := s.m.Credentials().ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	records := make([]portable.Record, 0, len(items))
	for _, c := range items {
		secret, err := s.vault.Open(sealedOf(&c))
		if err != nil {
			s.log.Error(ctx, "export aborted", "account", ownerID, "title", c.Title, "error", err)
			return nil, &common.DecryptionError{Title: c.Title, Err: err}
		}
		records = append(records, portable.Record{
			Title:      c.Title,
			Website:    c.Website,
			Username:   c.Username,
			Email:      c.Email,
			Password:   secret,
			Category:   string(c.Category),
			Notes:      c.Notes,
			Tags:       c.Tags,
			IsFavorite: c.IsFavorite,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		})
	}

	now := s.now()
	var buf bytes.Buffer
	if err := portable.Encode(&buf, f, records, now); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "vault exported", "account", ownerID, "count", len(records), "format", string(f))
	return &ExportResult{
		Filename:    portable.ExportFilename(f, now),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
		Count:       len(records),
	}, nil
}

// Import stores every usable record of data under policy. A bad record is
// reported in Errors and never stops the rest.
func (s *TransferService) Import(ctx context.Context, ownerID, master string, data []byte, f portable.Format, policy ImportPolicy) (*ImportResult, error) {
	ctx, err := s.gate.Require(ctx, ownerID, master)
	if err != nil {
		return nil, err
	}

	batch, err := portable.Decode(data, f)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Errors: make([]ImportError, 0)}
	for _, r := range batch.Rejected {
		res.Errors = append(res.Errors, ImportError{Title: r.Title, Error: r.Reason})
	}
	for _, c := range batch.Candidates {
		outcome, err := s.importOne(ctx, ownerID, c, policy)
		if err != nil {
			title := c.Title
			if title == "" {
				title = "Unknown"
			}
			res.Errors = append(res.Errors, ImportError{Title: title, Error: importMessage(err)})
			continue
		}
		switch outcome {
		case outcomeImported:
			res.Imported++
		case outcomeUpdated:
			res.Updated++
		case outcomeSkipped:
			res.Skipped++
		}
	}

	s.log.Info(ctx, "vault imported", "account", ownerID,
		"imported", res.Imported, "updated", res.Updated, "skipped", res.Skipped, "errors", len(res.Errors))
	return res, nil
}

func importMessage(err error) string {
	if errors.Is(err, common.ErrValidation) {
		return strings.TrimPrefix(err.Error(), common.ErrValidation.Error()+": ")
	}
	return err.Error()
}

func normalizeCandidate(c portable.Candidate) (portable.Candidate, models.Category, error) {
	c.Title = matchKey(c.Title)
	c.Website = matchKey(c.Website)
	if c.Title == "" || c.Password == "" {
		return c, "", common.Validationf("Title and password are required")
	}
	cat := models.Category(strings.ToLower(strings.TrimSpace(c.Category)))
	if cat == "" {
		cat = models.CategoryOther
	}
	if !cat.Valid() {
		return c, "", common.Validationf("unknown category %q", c.Category)
	}
	return c, cat, nil
}

func (s *TransferService) importOne(ctx context.Context, ownerID string, c portable.Candidate, policy ImportPolicy) (importOutcome, error) {
	c, cat, err := normalizeCandidate(c)
	if err != nil {
		return 0, err
	}

	repo := s.m.Credentials()
	existing, err := repo.FindByTitleWebsite(ctx, ownerID, c.Title, c.Website)
	if err != nil && !isNotFound(err) {
		return 0, err
	}

	if existing != nil {
		switch {
		case policy.UpdateExisting:
			if err := s.overwrite(ctx, existing, c, cat); err != nil {
				return 0, err
			}
			return outcomeUpdated, nil
		case policy.SkipDuplicates:
			return outcomeSkipped, nil
		}
	}

	rec := &models.Credential{
		AccountID: ownerID,
		Title:     c.Title,
		Website:   c.Website,
		Username:  c.Username,
		Email:     c.Email,
		Notes:     c.Notes,
		Category:  cat,
		Tags:      cleanTags(c.Tags),
	}
	if c.IsFavorite != nil {
		rec.IsFavorite = *c.IsFavorite
	}
	sealed, err := s.vault.Seal(c.Password)
	if err != nil {
		return 0, err
	}
	rec.Ciphertext, rec.IV = sealed.Ciphertext, sealed.IV
	if _, err := repo.Create(ctx, rec); err != nil {
		return 0, err
	}
	return outcomeImported, nil
}

// overwrite copies the non-empty fields of c onto existing and re-seals the
// secret.
func (s *TransferService) overwrite(ctx context.Context, existing *models.Credential, c portable.Candidate, cat models.Category) error {
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&existing.Username, c.Username)
	setIf(&existing.Email, c.Email)
	setIf(&existing.Notes, c.Notes)
	if strings.TrimSpace(c.Category) != "" {
		existing.Category = cat
	}
	if tags := cleanTags(c.Tags); len(tags) > 0 {
		existing.Tags = tags
	}
	if c.IsFavorite != nil {
		existing.IsFavorite = *c.IsFavorite
	}

	sealed, err := s.vault.Seal(c.Password)
	if err != nil {
		return err
	}
	existing.Ciphertext, existing.IV = sealed.Ciphertext, sealed.IV
	_, err = s.m.Credentials().Update(ctx, existing)
	return err
}
