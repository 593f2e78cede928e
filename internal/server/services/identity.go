package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/mailer"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

type RegistrationInput struct {
	Email          string `json:"email" validate:"required,email"`
	FirstName      string `json:"firstName" validate:"required,min=2,max=50"`
	LastName       string `json:"lastName" validate:"required,min=2,max=50"`
	Password       string `json:"password" validate:"required,login_secret"`
	MasterPassword string `json:"masterPassword" validate:"required,min=8"`
}

// Session is an authenticated account with fresh tokens.
type Session struct {
	Account *models.Account
	Tokens  *TokenPair
}

// LoginResult either holds a session or tells the caller a 2FA code was
// sent and login must be repeated with it.
type LoginResult struct {
	ChallengePending bool
	Session          *Session
}

// IdentityService drives registration, login with optional 2FA and the
// password reset flow on top of the code ledger.
type IdentityService struct {
	m           repomanager.RepositoryManager
	ledger      *CodeLedger
	sessions    *SessionService
	hasher      cryptox.Hasher
	sender      mailer.Sender
	resetWindow time.Duration
	now         func() time.Time
	log         logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewIdentityService(
	m repomanager.RepositoryManager,
	ledger *CodeLedger,
	sessions *SessionService,
	hasher cryptox.Hasher,
	sender mailer.Sender,
	resetWindow time.Duration,
	log logging.Logger,
) *IdentityService {
	return &IdentityService{
		m:           m,
		ledger:      ledger,
		sessions:    sessions,
		hasher:      hasher,
		sender:      sender,
		resetWindow: resetWindow,
		now:         time.Now,
		log:         log.With("module", "identity"),
	}
}

func (s *IdentityService) send(ctx context.Context, email, code string, purpose models.Purpose) error {
	if err := s.sender.Send(ctx, email, code, purpose); err != nil {
		s.log.Error(ctx, "code delivery failed", "purpose", string(purpose), "error", err)
		if errors.Is(err, common.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrDelivery, err)
	}
	return nil
}

func (s *IdentityService) accountExists(ctx context.Context, email string) (bool, error) {
	_, err := s.m.Accounts().GetByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Initiate stages a registration and mails its code. No account exists
// until Complete.
func (s *IdentityService) Initiate(ctx context.Context, in RegistrationInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return err
	}
	exists, err := s.accountExists(ctx, in.Email)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrDuplicateAccount
	}

	loginHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return err
	}
	masterHash, err := s.hasher.Hash(in.MasterPassword)
	if err != nil {
		return err
	}
	staged := &models.StagedAccount{
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		LoginHash:  loginHash,
		MasterHash: masterHash,
	}

	code, err := s.ledger.Issue(ctx, in.Email, models.PurposeRegistration, staged)
	if err != nil {
		return err
	}
	return s.send(ctx, in.Email, code, models.PurposeRegistration)
}

// ResendRegistrationCode mails a new code for a pending registration.
func (s *IdentityService) ResendRegistrationCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	exists, err := s.accountExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrDuplicateAccount
	}
	code, err := s.ledger.Reissue(ctx, email, models.PurposeRegistration)
	if err != nil {
		return err
	}
	return s.send(ctx, email, code, models.PurposeRegistration)
}

// Complete verifies the registration code, creates the account from the
// staged data and logs it in.
func (s *IdentityService) Complete(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)
	exists, err := s.accountExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrDuplicateAccount
	}

	rec, err := s.ledger.Verify(ctx, email, models.PurposeRegistration, code)
	if errors.Is(err, common.ErrCodeAlreadyUsed) {
		// verified earlier but no account was created: the sign-up was
		// interrupted and only a fresh code can finish it
		return nil, fmt.Errorf("%w: registration was interrupted, request a new code", common.ErrCodeExpired)
	}
	if err != nil {
		return nil, err
	}
	if rec.Staged == nil {
		return nil, common.ErrCodeInvalid
	}

	var out *Session
	err = s.m.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		now := s.now()
		acc, err := m.Accounts().Create(ctx, &models.Account{
			Email:         email,
			FirstName:     rec.Staged.FirstName,
			LastName:      rec.Staged.LastName,
			LoginHash:     rec.Staged.LoginHash,
			MasterHash:    rec.Staged.MasterHash,
			EmailVerified: true,
			LastLogin:     &now,
			Settings:      models.DefaultAccountSettings(),
		})
		if err != nil {
			return err
		}
		if err := s.ledger.WithManager(m).CompleteAction(ctx, email, models.PurposeRegistration); err != nil {
			return err
		}
		tokens, err := s.sessions.generateTokenPair(ctx, m, acc.ID)
		if err != nil {
			return err
		}
		out = &Session{Account: acc, Tokens: tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account registered", "account", out.Account.ID)
	return out, nil
}

// checkPassword loads the account by email and compares its login hash. An
// unknown email still costs one hash comparison.
func (s *IdentityService) checkPassword(ctx context.Context, email, password string) (*models.Account, error) {
	acc, err := s.m.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.dummyCompare(password)
			return nil, common.ErrorUnauthorized
		}
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

func (s *IdentityService) dummyCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Compare(s.dummyHash, password)
	}
}

// Authenticate checks the login password. With 2FA on, a call without otp
// mails a code and returns ChallengePending; a call with otp verifies it.
func (s *IdentityService) Authenticate(ctx context.Context, email, password, otp string) (*LoginResult, error) {
	email = normalizeEmail(email)
	acc, err := s.checkPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.log.Info(ctx, "login failed")
		}
		return nil, err
	}

	if acc.TwoFactorEnabled {
		if otp == "" {
			code, err := s.ledger.Issue(ctx, email, models.PurposeTwoFactor, nil)
			if err != nil {
				return nil, err
			}
			if err := s.send(ctx, email, code, models.PurposeTwoFactor); err != nil {
				return nil, err
			}
			return &LoginResult{ChallengePending: true}, nil
		}
		if _, err := s.ledger.Verify(ctx, email, models.PurposeTwoFactor, otp); err != nil {
			return nil, err
		}
		if err := s.ledger.CompleteAction(ctx, email, models.PurposeTwoFactor); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := s.m.Accounts().RecordLogin(ctx, acc.ID, now); err != nil {
		return nil, err
	}
	acc.LastLogin = &now
	acc.MasterFailedAttempts = 0

	tokens, err := s.sessions.Issue(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: &Session{Account: acc, Tokens: tokens}}, nil
}

// RequestReset mails a reset code. Unknown emails succeed silently.
func (s *IdentityService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return common.Validationf("email failed email")
	}
	exists, err := s.accountExists(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		s.log.Debug(ctx, "reset requested for unknown email")
		return nil
	}
	code, err := s.ledger.Issue(ctx, email, models.PurposePasswordReset, nil)
	if err != nil {
		return err
	}
	return s.send(ctx, email, code, models.PurposePasswordReset)
}

// ConfirmCode verifies a reset code, opening the window for ApplyNewSecret.
func (s *IdentityService) ConfirmCode(ctx context.Context, email, code string) error {
	_, err := s.ledger.Verify(ctx, normalizeEmail(email), models.PurposePasswordReset, code)
	return err
}

// ApplyNewSecret spends a verified reset code on a new login password,
// revokes existing sessions and starts a new one.
func (s *IdentityService) ApplyNewSecret(ctx context.Context, email, code, newSecret string) (*Session, error) {
	email = normalizeEmail(email)
	if err := checkLoginSecret(newSecret); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return nil, err
	}

	// The code is spent before the write so a failed write fails closed.
	if _, err := s.ledger.Redeem(ctx, email, models.PurposePasswordReset, code, s.resetWindow); err != nil {
		return nil, err
	}

	var out *Session
	err = s.m.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		acc, err := m.Accounts().GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if err := m.Accounts().UpdateLoginHash(ctx, acc.ID, hash); err != nil {
			return err
		}
		if err := m.RefreshTokens().DeleteByAccount(ctx, acc.ID); err != nil {
			return err
		}
		now := s.now()
		if err := m.Accounts().RecordLogin(ctx, acc.ID, now); err != nil {
			return err
		}
		acc.LoginHash = hash
		acc.LastLogin = &now
		acc.MasterFailedAttempts = 0
		tokens, err := s.sessions.generateTokenPair(ctx, m, acc.ID)
		if err != nil {
			return err
		}
		out = &Session{Account: acc, Tokens: tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "password reset", "account", out.Account.ID)
	return out, nil
}

func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}
