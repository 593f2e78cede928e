package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

type grantKey struct{}

// MasterKeyGate checks the master password before sensitive operations.
// Failures are counted on the account; reaching the limit locks the gate and
// revokes every refresh token, so the user has to log in again.
type MasterKeyGate struct {
	m           repomanager.RepositoryManager
	hasher      cryptox.Hasher
	maxAttempts int
	now         func() time.Time
	log         logging.Logger
}

func NewMasterKeyGate(m repomanager.RepositoryManager, hasher cryptox.Hasher, maxAttempts int, log logging.Logger) *MasterKeyGate {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &MasterKeyGate{m: m, hasher: hasher, maxAttempts: maxAttempts, now: time.Now, log: log.With("module", "gate")}
}

// Verify reports whether secret is the account's master password. A locked
// account yields ErrMasterSecretLocked without checking the secret.
func (g *MasterKeyGate) Verify(ctx context.Context, accountID, secret string) (bool, error) {
	acc, err := g.m.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrorUnauthorized
		}
		return false, err
	}
	if acc.MasterFailedAttempts >= g.maxAttempts {
		return false, common.ErrMasterSecretLocked
	}

	ok, err := g.hasher.Compare(acc.MasterHash, secret)
	if err != nil {
		return false, err
	}
	if ok {
		if acc.MasterFailedAttempts > 0 {
			if err := g.m.Accounts().ResetMasterFailures(ctx, accountID); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	n, err := g.m.Accounts().RecordMasterFailure(ctx, accountID, g.now())
	if err != nil {
		return false, err
	}
	g.log.Warn(ctx, "master password mismatch", "account", accountID, "attempts", n)
	if n >= g.maxAttempts {
		if err := g.m.RefreshTokens().DeleteByAccount(ctx, accountID); err != nil {
			return false, err
		}
		g.log.Warn(ctx, "master password locked", "account", accountID)
		return false, common.ErrMasterSecretLocked
	}
	return false, nil
}

// Require verifies secret and returns ctx carrying a grant for accountID.
// An empty or wrong secret yields ErrMasterSecretInvalid.
func (g *MasterKeyGate) Require(ctx context.Context, accountID, secret string) (context.Context, error) {
	if secret == "" {
		return ctx, common.ErrMasterSecretInvalid
	}
	ok, err := g.Verify(ctx, accountID, secret)
	if err != nil {
		return ctx, err
	}
	if !ok {
		return ctx, common.ErrMasterSecretInvalid
	}
	return context.WithValue(ctx, grantKey{}, accountID), nil
}

// requireGrant fails unless ctx came out of Require for accountID.
func requireGrant(ctx context.Context, accountID string) error {
	if id, ok := ctx.Value(grantKey{}).(string); ok && id == accountID {
		return nil
	}
	return common.ErrMasterSecretRequired
}
