package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	for _, algo := range []string{AlgoBcrypt, AlgoArgon2id} {
		t.Run(algo, func(t *testing.T) {
			h, err := NewPasswordHasher(algo, bcrypt.MinCost)
			require.NoError(t, err)

			hash, err := h.Hash("Abc12345!")
			require.NoError(t, err)
			assert.NotContains(t, hash, "Abc12345!")

			ok, err := h.Compare(hash, "Abc12345!")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Compare(hash, "abc12345!")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPasswordHasher_SameSecretDifferentHashes(t *testing.T) {
	h, err := NewPasswordHasher(AlgoArgon2id, 0)
	require.NoError(t, err)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "salts must differ")
}

func TestPasswordHasher_VerifiesOtherAlgorithm(t *testing.T) {
	bh, err := NewPasswordHasher(AlgoBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	ah, err := NewPasswordHasher(AlgoArgon2id, 0)
	require.NoError(t, err)

	bHash, err := bh.Hash("pw")
	require.NoError(t, err)
	ok, err := ah.Compare(bHash, "pw")
	require.NoError(t, err)
	assert.True(t, ok)

	aHash, err := ah.Hash("pw")
	require.NoError(t, err)
	ok, err = bh.Compare(aHash, "pw")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	h, err := NewPasswordHasher(AlgoBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Compare("$argon2id$v=19$bad", "pw")
	assert.ErrorIs(t, err, ErrMalformedHash)

	_, err = h.Compare("garbage", "pw")
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestNewPasswordHasher_Rejects(t *testing.T) {
	_, err := NewPasswordHasher("md5", 10)
	assert.Error(t, err)

	_, err = NewPasswordHasher(AlgoBcrypt, 99)
	assert.Error(t, err)
}
