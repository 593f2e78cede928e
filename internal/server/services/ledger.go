package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/codes"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

const (
	MaxCodeAttempts = 3

	RegistrationCodeTTL = 10 * time.Minute
	ResetCodeTTL        = 10 * time.Minute
	TwoFactorCodeTTL    = 5 * time.Minute

	// casRetries bounds how often a verification re-reads a record that
	// changed under it.
	casRetries = 5
)

func CodeTTL(p models.Purpose) time.Duration {
	switch p {
	case models.PurposeTwoFactor:
		return TwoFactorCodeTTL
	case models.PurposePasswordReset:
		return ResetCodeTTL
	default:
		return RegistrationCodeTTL
	}
}

// CodeGenerator returns a fresh 6-digit code.
type CodeGenerator func() string

// RandomCode draws uniformly from 100000-999999.
func RandomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return fmt.Sprintf("%06d", 100000+n.Int64())
}

// CodeLedger runs the one-time code state machine:
// pending -> verified -> consumed, with expiry and the attempt cap as
// terminal failures. Every write is a conditional update on the record the
// caller read, so concurrent guesses cannot exceed MaxCodeAttempts.
type CodeLedger struct {
	m        repomanager.RepositoryManager
	generate CodeGenerator
	now      func() time.Time
	log      logging.Logger
}

func NewCodeLedger(m repomanager.RepositoryManager, generate CodeGenerator, log logging.Logger) *CodeLedger {
	if generate == nil {
		generate = RandomCode
	}
	return &CodeLedger{m: m, generate: generate, now: time.Now, log: log.With("module", "ledger")}
}

// WithManager returns a ledger bound to m, typically a transaction.
func (l *CodeLedger) WithManager(m repomanager.RepositoryManager) *CodeLedger {
	c := *l
	c.m = m
	return &c
}

func (l *CodeLedger) repo() codes.Repository {
	return l.m.Codes()
}

// Issue creates a code for (email, purpose), superseding any earlier one.
// staged is kept with the record and handed back by Verify.
func (l *CodeLedger) Issue(ctx context.Context, email string, purpose models.Purpose, staged *models.StagedAccount) (string, error) {
	if !purpose.Valid() {
		return "", common.Validationf("unknown purpose %q", purpose)
	}
	c := &models.OneTimeCode{
		Email:     email,
		Purpose:   purpose,
		Code:      l.generate(),
		ExpiresAt: l.now().Add(CodeTTL(purpose)),
		Staged:    staged,
	}
	if _, err := l.repo().Replace(ctx, c); err != nil {
		return "", err
	}
	l.log.Debug(ctx, "code issued", "purpose", string(purpose))
	return c.Code, nil
}

// Reissue replaces the current code for (email, purpose) with a new one,
// keeping the staged payload. It fails with ErrorNotFound if none exists.
func (l *CodeLedger) Reissue(ctx context.Context, email string, purpose models.Purpose) (string, error) {
	c, err := l.repo().Find(ctx, email, purpose)
	if err != nil {
		return "", err
	}
	return l.Issue(ctx, email, purpose, c.Staged)
}

func codesEqual(stored, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// usable reports why a record cannot be verified, if it cannot.
func usable(c *models.OneTimeCode, now time.Time) error {
	switch c.StateAt(now) {
	case models.CodeVerified, models.CodeConsumed:
		return common.ErrCodeAlreadyUsed
	case models.CodeExpired:
		return common.ErrCodeExpired
	}
	if c.Attempts >= MaxCodeAttempts {
		return common.ErrAttemptsExhausted
	}
	return nil
}

// Verify checks supplied against the pending code for (email, purpose) and
// moves it to verified. A wrong code burns one attempt. The returned record
// carries the staged payload.
func (l *CodeLedger) Verify(ctx context.Context, email string, purpose models.Purpose, supplied string) (*models.OneTimeCode, error) {
	repo := l.repo()
	for i := 0; i < casRetries; i++ {
		c, err := repo.Find(ctx, email, purpose)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrCodeInvalid
			}
			return nil, err
		}

		now := l.now()
		if err := usable(c, now); err != nil {
			return nil, err
		}

		if !codesEqual(c.Code, supplied) {
			if err := l.fail(ctx, repo, c); err != nil {
				if errors.Is(err, common.ErrVersionConflict) {
					continue
				}
				return nil, err
			}
			return nil, common.ErrCodeInvalid
		}

		if err := repo.Transition(ctx, c, models.CodeVerified, now, MaxCodeAttempts); err != nil {
			if errors.Is(err, common.ErrVersionConflict) {
				continue
			}
			return nil, err
		}
		c.State = models.CodeVerified
		c.VerifiedAt = &now
		return c, nil
	}
	return nil, common.ErrVersionConflict
}

func (l *CodeLedger) fail(ctx context.Context, repo codes.Repository, c *models.OneTimeCode) error {
	n, err := repo.RecordFailure(ctx, c, MaxCodeAttempts)
	if err != nil {
		return err
	}
	l.log.Info(ctx, "wrong code", "purpose", string(c.Purpose), "attempts", n)
	return nil
}

// Redeem spends a verified code on its follow-up action. The code must
// match, be verified no longer than window ago and not yet be consumed. A
// wrong code counts against the same attempt cap.
func (l *CodeLedger) Redeem(ctx context.Context, email string, purpose models.Purpose, supplied string, window time.Duration) (*models.OneTimeCode, error) {
	repo := l.repo()
	for i := 0; i < casRetries; i++ {
		c, err := repo.Find(ctx, email, purpose)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrCodeInvalid
			}
			return nil, err
		}

		now := l.now()
		switch c.StateAt(now) {
		case models.CodeConsumed:
			return nil, common.ErrActionAlreadyCompleted
		case models.CodeExpired:
			return nil, common.ErrCodeExpired
		case models.CodePending:
			return nil, common.ErrCodeInvalid
		}
		if c.Attempts >= MaxCodeAttempts {
			return nil, common.ErrAttemptsExhausted
		}
		if c.VerifiedAt == nil || !now.Before(c.VerifiedAt.Add(window)) {
			return nil, common.ErrCodeExpired
		}

		if !codesEqual(c.Code, supplied) {
			if err := l.fail(ctx, repo, c); err != nil {
				if errors.Is(err, common.ErrVersionConflict) {
					continue
				}
				return nil, err
			}
			return nil, common.ErrCodeInvalid
		}

		if err := repo.Transition(ctx, c, models.CodeConsumed, now, MaxCodeAttempts); err != nil {
			if errors.Is(err, common.ErrVersionConflict) {
				continue
			}
			return nil, err
		}
		c.State = models.CodeConsumed
		return c, nil
	}
	return nil, common.ErrVersionConflict
}

// CompleteAction marks the verified code for (email, purpose) consumed.
func (l *CodeLedger) CompleteAction(ctx context.Context, email string, purpose models.Purpose) error {
	repo := l.repo()
	for i := 0; i < casRetries; i++ {
		c, err := repo.Find(ctx, email, purpose)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrCodeInvalid
			}
			return err
		}
		switch c.State {
		case models.CodeConsumed:
			return common.ErrActionAlreadyCompleted
		case models.CodePending:
			return common.ErrCodeInvalid
		}

		err = repo.Transition(ctx, c, models.CodeConsumed, l.now(), MaxCodeAttempts)
		if errors.Is(err, common.ErrVersionConflict) {
			continue
		}
		return err
	}
	return common.ErrVersionConflict
}

// Discard drops any code for (email, purpose).
func (l *CodeLedger) Discard(ctx context.Context, email string, purpose models.Purpose) error {
	return l.repo().Delete(ctx, email, purpose)
}
