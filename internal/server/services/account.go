package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/mailer"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

const (
	MinAutoLogoutMinutes = 1
	MaxAutoLogoutMinutes = 1440
)

type ProfileInput struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
}

// AccountService manages an authenticated account: profile, both
// passwords, settings, 2FA and deletion.
type AccountService struct {
	m      repomanager.RepositoryManager
	gate   *MasterKeyGate
	ledger *CodeLedger
	hasher cryptox.Hasher
	sender mailer.Sender
	log    logging.Logger
}

func NewAccountService(
	m repomanager.RepositoryManager,
	gate *MasterKeyGate,
	ledger *CodeLedger,
	hasher cryptox.Hasher,
	sender mailer.Sender,
	log logging.Logger,
) *AccountService {
	return &AccountService{m: m, gate: gate, ledger: ledger, hasher: hasher, sender: sender, log: log.With("module", "account")}
}

func (s *AccountService) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	return s.m.Accounts().GetByID(ctx, accountID)
}

func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, in ProfileInput) (*models.Account, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.m.Accounts().UpdateProfile(ctx, accountID, in.FirstName, in.LastName); err != nil {
		return nil, err
	}
	return s.m.Accounts().GetByID(ctx, accountID)
}

// checkLogin loads the account and compares its login password.
func (s *AccountService) checkLogin(ctx context.Context, accountID, password string) (*models.Account, error) {
	acc, err := s.m.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Compare(acc.LoginHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return acc, nil
}

func (s *AccountService) ChangeLoginSecret(ctx context.Context, accountID, current, next string) error {
	if _, err := s.checkLogin(ctx, accountID, current); err != nil {
		return err
	}
	if err := checkLoginSecret(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.m.Accounts().UpdateLoginHash(ctx, accountID, hash)
}

// ChangeMasterSecret swaps the master password hash. Stored credentials are
// sealed with the server key and need no re-encryption.
func (s *AccountService) ChangeMasterSecret(ctx context.Context, accountID, current, next string) error {
	if _, err := s.gate.Require(ctx, accountID, current); err != nil {
		return err
	}
	if len([]rune(next)) < 8 {
		return common.Validationf("master password must be at least 8 characters")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.m.Accounts().UpdateMasterHash(ctx, accountID, hash); err != nil {
		return err
	}
	s.log.Info(ctx, "master password changed", "account", accountID)
	return nil
}

func (s *AccountService) Settings(ctx context.Context, accountID string) (*models.AccountSettings, error) {
	acc, err := s.m.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &acc.Settings, nil
}

func (s *AccountService) UpdateSettings(ctx context.Context, accountID string, settings models.AccountSettings) (*models.AccountSettings, error) {
	if settings.AutoLogoutMinutes < MinAutoLogoutMinutes || settings.AutoLogoutMinutes > MaxAutoLogoutMinutes {
		return nil, common.Validationf("autoLogout must be between %d and %d minutes", MinAutoLogoutMinutes, MaxAutoLogoutMinutes)
	}
	if err := s.m.Accounts().UpdateSettings(ctx, accountID, settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// EnableTwoFactor mails a two_factor code; ConfirmTwoFactor switches 2FA on.
func (s *AccountService) EnableTwoFactor(ctx context.Context, accountID, password string) error {
	acc, err := s.checkLogin(ctx, accountID, password)
	if err != nil {
		return err
	}
	if acc.TwoFactorEnabled {
		return common.Validationf("two-factor authentication is already enabled")
	}
	code, err := s.ledger.Issue(ctx, acc.Email, models.PurposeTwoFactor, nil)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, acc.Email, code, models.PurposeTwoFactor); err != nil {
		s.log.Error(ctx, "code delivery failed", "error", err)
		return common.ErrDelivery
	}
	return nil
}

func (s *AccountService) ConfirmTwoFactor(ctx context.Context, accountID, code string) error {
	acc, err := s.m.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if _, err := s.ledger.Verify(ctx, acc.Email, models.PurposeTwoFactor, code); err != nil {
		return err
	}
	if err := s.ledger.CompleteAction(ctx, acc.Email, models.PurposeTwoFactor); err != nil {
		return err
	}
	return s.m.Accounts().SetTwoFactor(ctx, accountID, true)
}

func (s *AccountService) DisableTwoFactor(ctx context.Context, accountID, password string) error {
	if _, err := s.checkLogin(ctx, accountID, password); err != nil {
		return err
	}
	return s.m.Accounts().SetTwoFactor(ctx, accountID, false)
}

// DeleteAccount removes the account and everything it owns in one
// transaction. Both passwords are required.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID, password, master string) error {
	acc, err := s.checkLogin(ctx, accountID, password)
	if err != nil {
		return err
	}
	if _, err := s.gate.Require(ctx, accountID, master); err != nil {
		return err
	}

	err = s.m.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		if err := m.Credentials().DeleteByOwner(ctx, accountID); err != nil {
			return err
		}
		if err := m.RefreshTokens().DeleteByAccount(ctx, accountID); err != nil {
			return err
		}
		if err := m.Codes().DeleteByEmail(ctx, acc.Email); err != nil {
			return err
		}
		return m.Accounts().Delete(ctx, accountID)
	})
	if err != nil {
		return err
	}
	s.log.Info(ctx, "account deleted", "account", accountID)
	return nil
}
