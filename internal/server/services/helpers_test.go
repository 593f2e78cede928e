package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/config"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixedCodes hands out the given codes in order, then repeats the last one.
func fixedCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[min(i, len(codes)-1)]
		i++
		return c
	}
}

type sentCode struct {
	Email   string
	Code    string
	Purpose models.Purpose
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (s *captureSender) Send(_ context.Context, email, code string, purpose models.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCode{Email: email, Code: code, Purpose: purpose})
	return nil
}

func (s *captureSender) last(t *testing.T) sentCode {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no code was sent")
	return s.sent[len(s.sent)-1]
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// brokenVault opens nothing.
type brokenVault struct{ Vault }

func (brokenVault) Open(cryptox.Sealed) (string, error) {
	return "", errors.Join(cryptox.ErrCrypto, errBoom{})
}

func testLogger(t *testing.T) logging.Logger {
	return logging.WrapZap(zaptest.NewLogger(t))
}

func testVault(t *testing.T) *cryptox.Vault {
	t.Helper()
	v, err := cryptox.NewVault(cryptox.VaultConfig{Key: bytes.Repeat([]byte{7}, cryptox.KeySize)})
	require.NoError(t, err)
	return v
}

func testHasher(t *testing.T) cryptox.Hasher {
	t.Helper()
	h, err := cryptox.NewPasswordHasher(cryptox.AlgoBcrypt, 4)
	require.NoError(t, err)
	return h
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		MasterMaxAttempts:            3,
		ResetWindow:                  10 * time.Minute,
	}
}

// env wires every service over one in-memory store with a shared clock.
type env struct {
	m           *repomanager.MemoryRepositoryManager
	clock       *testClock
	sender      *captureSender
	hasher      cryptox.Hasher
	vault       *cryptox.Vault
	ledger      *CodeLedger
	gate        *MasterKeyGate
	sessions    *SessionService
	identity    *IdentityService
	accounts    *AccountService
	credentials *CredentialService
	transfer    *TransferService
}

func newEnv(t *testing.T, codes ...string) *env {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"111111"}
	}
	log := testLogger(t)
	cfg := testConfig()
	e := &env{
		m:      repomanager.NewMemoryRepositoryManager(),
		clock:  newTestClock(),
		sender: &captureSender{},
		hasher: testHasher(t),
		vault:  testVault(t),
	}
	e.ledger = NewCodeLedger(e.m, fixedCodes(codes...), log)
	e.ledger.now = e.clock.Now
	e.gate = NewMasterKeyGate(e.m, e.hasher, cfg.MasterMaxAttempts, log)
	e.gate.now = e.clock.Now
	e.sessions = NewSessionService(e.m, cfg)
	e.identity = NewIdentityService(e.m, e.ledger, e.sessions, e.hasher, e.sender, cfg.ResetWindow, log)
	e.identity.now = e.clock.Now
	e.accounts = NewAccountService(e.m, e.gate, e.ledger, e.hasher, e.sender, log)
	e.credentials = NewCredentialService(e.m, e.vault, log)
	e.credentials.now = e.clock.Now
	e.transfer = NewTransferService(e.m, e.gate, e.vault, log)
	e.transfer.now = e.clock.Now
	return e
}

const (
	testLogin  = "Abc12345!"
	testMaster = "Mas12345!"
)

// register runs the whole sign-up flow for email and returns the session.
func (e *env) register(t *testing.T, email string) *Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.identity.Initiate(ctx, RegistrationInput{
		Email:          email,
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Password:       testLogin,
		MasterPassword: testMaster,
	}))
	s, err := e.identity.Complete(ctx, email, e.sender.last(t).Code)
	require.NoError(t, err)
	return s
}

// granted returns a context unlocked for accountID.
func (e *env) granted(t *testing.T, accountID string) context.Context {
	t.Helper()
	ctx, err := e.gate.Require(context.Background(), accountID, testMaster)
	require.NoError(t, err)
	return ctx
}
