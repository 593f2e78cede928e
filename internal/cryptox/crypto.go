// Package cryptox holds the vault cipher used to seal credential secrets at
// rest and the one-way hashers used for login and master passwords.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/securepass/internal/common"
)

// KeySize is the vault key length (AES-256).
const KeySize = 32

// ErrCrypto marks unrecoverable seal/open failures: bad key, malformed IV,
// corrupted or truncated ciphertext.
var ErrCrypto = errors.New("crypto error")

// VaultConfig carries the static vault key. It is built once at startup and
// handed to NewVault; nothing in the package keeps a global copy.
type VaultConfig struct {
	Key []byte
}

// NewVaultConfig decodes a hex encoded 32-byte key.
func NewVaultConfig(hexKey string) (VaultConfig, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return VaultConfig{}, fmt.Errorf("%w: encryption key is not hex: %v", ErrCrypto, err)
	}
	if len(key) != KeySize {
		return VaultConfig{}, fmt.Errorf("%w: encryption key must be %d bytes, got %d", ErrCrypto, KeySize, len(key))
	}
	return VaultConfig{Key: key}, nil
}

// Sealed is a ciphertext together with the IV (GCM nonce) it was sealed with.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
}

// Vault seals and opens single secret values with AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// NewVault builds a vault for cfg.Key.
func NewVault(cfg VaultConfig) (*Vault, error) {
	if len(cfg.Key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrCrypto, KeySize, len(cfg.Key))
	}
	block, err := aes.NewCipher(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random IV.
func (v *Vault) Seal(plaintext string) (Sealed, error) {
	if !utf8.ValidString(plaintext) {
		return Sealed{}, fmt.Errorf("%w: plaintext is not valid UTF-8", ErrCrypto)
	}

	iv := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	buf := []byte(plaintext)
	defer common.WipeByteArray(buf)
	ciphertext := v.aead.Seal(nil, iv, buf, nil)
	return Sealed{Ciphertext: ciphertext, IV: iv}, nil
}

// Open reverses Seal. Data sealed under another key fails authentication.
func (v *Vault) Open(s Sealed) (string, error) {
	if len(s.IV) != v.aead.NonceSize() {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", ErrCrypto, v.aead.NonceSize(), len(s.IV))
	}
	if len(s.Ciphertext) < v.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrCrypto)
	}

	plaintext, err := v.aead.Open(nil, s.IV, s.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	defer common.WipeByteArray(plaintext)
	return string(plaintext), nil
}
