package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registration(email string) RegistrationInput {
	return RegistrationInput{
		Email:          email,
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Password:       testLogin,
		MasterPassword: testMaster,
	}
}

func TestIdentityService_RegistrationEndToEnd(t *testing.T) {
	e := newEnv(t, "482913")
	ctx := context.Background()

	require.NoError(t, e.identity.Initiate(ctx, registration("a@x.com")))

	sent := e.sender.last(t)
	assert.Equal(t, "a@x.com", sent.Email)
	assert.Equal(t, "482913", sent.Code)
	assert.Equal(t, models.PurposeRegistration, sent.Purpose)

	_, err := e.m.Accounts().GetByEmail(ctx, "a@x.com")
	require.ErrorIs(t, err, common.ErrorNotFound, "no account before the code is confirmed")

	s, err := e.identity.Complete(ctx, "a@x.com", "482913")
	require.NoError(t, err)
	require.NotNil(t, s.Tokens)
	assert.NotEmpty(t, s.Tokens.AccessToken)
	assert.NotEmpty(t, s.Tokens.RefreshToken)

	acc, err := e.m.Accounts().GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, s.Account.ID, acc.ID)
	assert.True(t, acc.EmailVerified)
	assert.Equal(t, models.DefaultAccountSettings(), acc.Settings)

	id, err := e.sessions.AccountID(s.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id)

	ok, err := e.hasher.Compare(acc.MasterHash, testMaster)
	require.NoError(t, err)
	assert.True(t, ok)

	err = e.identity.Initiate(ctx, registration("a@x.com"))
	assert.ErrorIs(t, err, common.ErrDuplicateAccount)
}

func TestIdentityService_CompleteChecksDuplicateAgain(t *testing.T) {
	e := newEnv(t, "111111")
	ctx := context.Background()

	require.NoError(t, e.identity.Initiate(ctx, registration("a@x.com")))
	require.NoError(t, e.identity.Initiate(ctx, registration("a@x.com")), "a second pending registration is allowed")

	_, err := e.identity.Complete(ctx, "a@x.com", "111111")
	require.NoError(t, err)
	_, err = e.identity.Complete(ctx, "a@x.com", "111111")
	assert.ErrorIs(t, err, common.ErrDuplicateAccount)
}

func TestIdentityService_InitiateValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*RegistrationInput)
	}{
		{"bad email", func(in *RegistrationInput) { in.Email = "nope" }},
		{"short name", func(in *RegistrationInput) { in.FirstName = "A" }},
		{"weak password", func(in *RegistrationInput) { in.Password = "abcdefgh" }},
		{"short password", func(in *RegistrationInput) { in.Password = "Ab1!" }},
		{"short master", func(in *RegistrationInput) { in.MasterPassword = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := registration("a@x.com")
			tt.mutate(&in)
			assert.ErrorIs(t, e.identity.Initiate(ctx, in), common.ErrValidation)
		})
	}
	assert.Zero(t, e.sender.count())
}

func TestIdentityService_EmailIsNormalized(t *testing.T) {
	e := newEnv(t, "111111")
	ctx := context.Background()

	require.NoError(t, e.identity.Initiate(ctx, registration("  A@X.com ")))
	assert.Equal(t, "a@x.com", e.sender.last(t).Email)
	_, err := e.identity.Complete(ctx, "A@x.COM", "111111")
	assert.NoError(t, err)
}

func TestIdentityService_DeliveryFailure(t *testing.T) {
	e := newEnv(t)
	e.sender.err = errBoom{}

	err := e.identity.Initiate(context.Background(), registration("a@x.com"))
	assert.ErrorIs(t, err, common.ErrDelivery)
}

func TestIdentityService_ResendRegistrationCode(t *testing.T) {
	e := newEnv(t, "111111", "222222", "333333")
	ctx := context.Background()

	assert.ErrorIs(t, e.identity.ResendRegistrationCode(ctx, "a@x.com"), common.ErrorNotFound)

	require.NoError(t, e.identity.Initiate(ctx, registration("a@x.com")))
	require.NoError(t, e.identity.ResendRegistrationCode(ctx, "a@x.com"))
	assert.Equal(t, "222222", e.sender.last(t).Code)

	_, err := e.identity.Complete(ctx, "a@x.com", "111111")
	assert.ErrorIs(t, err, common.ErrCodeInvalid, "resend supersedes the first code")
	s, err := e.identity.Complete(ctx, "a@x.com", "222222")
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", s.Account.LastName, "staged profile survives a resend")

	assert.ErrorIs(t, e.identity.ResendRegistrationCode(ctx, "a@x.com"), common.ErrDuplicateAccount)
}

func TestIdentityService_CompleteAfterInterruptedSignUp(t *testing.T) {
	e := newEnv(t, "111111", "222222")
	ctx := context.Background()
	require.NoError(t, e.identity.Initiate(ctx, registration("a@x.com")))

	// the code was verified but the account write never committed
	_, err := e.ledger.Verify(ctx, "a@x.com", models.PurposeRegistration, "111111")
	require.NoError(t, err)

	_, err = e.identity.Complete(ctx, "a@x.com", "111111")
	assert.ErrorIs(t, err, common.ErrCodeExpired)
	assert.NotErrorIs(t, err, common.ErrCodeAlreadyUsed)

	require.NoError(t, e.identity.ResendRegistrationCode(ctx, "a@x.com"))
	s, err := e.identity.Complete(ctx, "a@x.com", e.sender.last(t).Code)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", s.Account.Email)
}

func TestIdentityService_Authenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "a@x.com")

	_, err := e.identity.Authenticate(ctx, "a@x.com", "Wrong123!", "")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = e.identity.Authenticate(ctx, "ghost@x.com", testLogin, "")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	e.clock.Advance(time.Hour)
	res, err := e.identity.Authenticate(ctx, "A@x.com", testLogin, "")
	require.NoError(t, err)
	assert.False(t, res.ChallengePending)
	require.NotNil(t, res.Session)
	require.NotNil(t, res.Session.Account.LastLogin)
	assert.True(t, res.Session.Account.LastLogin.Equal(e.clock.Now()))
}

func TestIdentityService_TwoFactorLogin(t *testing.T) {
	e := newEnv(t, "111111", "222222", "333333")
	ctx := context.Background()
	acc := e.register(t, "a@x.com").Account
	require.NoError(t, e.m.Accounts().SetTwoFactor(ctx, acc.ID, true))

	res, err := e.identity.Authenticate(ctx, "a@x.com", testLogin, "")
	require.NoError(t, err)
	assert.True(t, res.ChallengePending)
	assert.Nil(t, res.Session)
	sent := e.sender.last(t)
	assert.Equal(t, models.PurposeTwoFactor, sent.Purpose)

	_, err = e.identity.Authenticate(ctx, "a@x.com", testLogin, "000000")
	assert.ErrorIs(t, err, common.ErrCodeInvalid)

	_, err = e.identity.Authenticate(ctx, "a@x.com", "Wrong123!", sent.Code)
	assert.ErrorIs(t, err, common.ErrorUnauthorized, "password is checked before the code")

	res, err = e.identity.Authenticate(ctx, "a@x.com", testLogin, sent.Code)
	require.NoError(t, err)
	require.NotNil(t, res.Session)

	_, err = e.identity.Authenticate(ctx, "a@x.com", testLogin, sent.Code)
	assert.ErrorIs(t, err, common.ErrCodeAlreadyUsed)
}

func TestIdentityService_PasswordReset(t *testing.T) {
	e := newEnv(t, "111111", "222222")
	ctx := context.Background()
	old := e.register(t, "a@x.com")

	require.NoError(t, e.identity.RequestReset(ctx, "a@x.com"))
	sent := e.sender.last(t)
	require.Equal(t, models.PurposePasswordReset, sent.Purpose)

	_, err := e.identity.ApplyNewSecret(ctx, "a@x.com", sent.Code, "Newpass1!")
	assert.ErrorIs(t, err, common.ErrCodeInvalid, "code must be confirmed first")

	require.NoError(t, e.identity.ConfirmCode(ctx, "a@x.com", sent.Code))
	assert.ErrorIs(t, e.identity.ConfirmCode(ctx, "a@x.com", sent.Code), common.ErrCodeAlreadyUsed)

	_, err = e.identity.ApplyNewSecret(ctx, "a@x.com", sent.Code, "weak")
	assert.ErrorIs(t, err, common.ErrValidation)

	s, err := e.identity.ApplyNewSecret(ctx, "a@x.com", sent.Code, "Newpass1!")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Tokens.AccessToken)

	_, err = e.identity.ApplyNewSecret(ctx, "a@x.com", sent.Code, "Other123!")
	assert.ErrorIs(t, err, common.ErrActionAlreadyCompleted)

	_, err = e.identity.Authenticate(ctx, "a@x.com", testLogin, "")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = e.identity.Authenticate(ctx, "a@x.com", "Newpass1!", "")
	assert.NoError(t, err)

	_, err = e.identity.Refresh(ctx, old.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "old sessions are revoked")
}

func TestIdentityService_ResetWindow(t *testing.T) {
	e := newEnv(t, "111111", "222222")
	ctx := context.Background()
	e.register(t, "a@x.com")

	require.NoError(t, e.identity.RequestReset(ctx, "a@x.com"))
	code := e.sender.last(t).Code
	require.NoError(t, e.identity.ConfirmCode(ctx, "a@x.com", code))

	e.clock.Advance(11 * time.Minute)
	_, err := e.identity.ApplyNewSecret(ctx, "a@x.com", code, "Newpass1!")
	assert.ErrorIs(t, err, common.ErrCodeExpired)
}

func TestIdentityService_RequestResetUnknownEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.identity.RequestReset(ctx, "ghost@x.com"))
	assert.Zero(t, e.sender.count())

	assert.ErrorIs(t, e.identity.RequestReset(ctx, "not-an-email"), common.ErrValidation)
}

func TestIdentityService_Refresh(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.register(t, "a@x.com")

	pair, err := e.identity.Refresh(ctx, s.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.Tokens.RefreshToken, pair.RefreshToken)

	_, err = e.identity.Refresh(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "refresh tokens rotate")
}
