package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"
)

// Argon2id parameters for newly hashed secrets.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

var ErrMalformedHash = errors.New("malformed password hash")

// Hasher turns secrets into salted one-way hashes and checks candidates
// against them.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) (bool, error)
}

// PasswordHasher hashes with the configured algorithm and verifies hashes of
// either supported algorithm, recognised by prefix, so stored hashes survive
// a change of configuration.
type PasswordHasher struct {
	algo       string
	bcryptCost int
}

// NewPasswordHasher returns a hasher for algo ("bcrypt" or "argon2id").
func NewPasswordHasher(algo string, bcryptCost int) (*PasswordHasher, error) {
	switch algo {
	case AlgoBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
	case AlgoArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algo)
	}
	return &PasswordHasher{algo: algo, bcryptCost: bcryptCost}, nil
}

func (h *PasswordHasher) Hash(secret string) (string, error) {
	if h.algo == AlgoArgon2id {
		return hashArgon2id(secret), nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *PasswordHasher) Compare(hash, secret string) (bool, error) {
	if strings.HasPrefix(hash, "$"+AlgoArgon2id+"$") {
		return compareArgon2id(hash, secret)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

func hashArgon2id(secret string) string {
	salt := common.GenerateRandByteArray(argonSaltLen)
	key := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

// compareArgon2id parses $argon2id$v=19$m=..,t=..,p=..$salt$key.
func compareArgon2id(encoded, secret string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(secret), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
