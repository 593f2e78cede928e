package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/auth"
	"github.com/dmitrijs2005/securepass/internal/server/config"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// SessionService issues JWT access tokens plus server-stored refresh tokens
// and rotates them.
type SessionService struct {
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

func NewSessionService(m repomanager.RepositoryManager, cfg *config.Config) *SessionService {
	return &SessionService{
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Issue mints a new pair for accountID.
func (s *SessionService) Issue(ctx context.Context, accountID string) (*TokenPair, error) {
	return s.generateTokenPair(ctx, s.repomanager, accountID)
}

// Refresh validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.repomanager.RefreshTokens().Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		_ = s.repomanager.RefreshTokens().Delete(ctx, refreshToken)
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := s.repomanager.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		if err := m.RefreshTokens().Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, m, token.AccountID)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// RevokeAll drops every refresh token of accountID.
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) error {
	return s.repomanager.RefreshTokens().DeleteByAccount(ctx, accountID)
}

// AccountID checks an access token and returns its account.
func (s *SessionService) AccountID(token string) (string, error) {
	return auth.GetAccountIDFromToken(token, s.jwtSecret)
}

func (s *SessionService) generateTokenPair(ctx context.Context, m repomanager.RepositoryManager, accountID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(accountID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := m.RefreshTokens().Create(ctx, accountID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
