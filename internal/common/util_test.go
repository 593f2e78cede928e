package common

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	// refresh tokens are 32 random bytes
	a, err := MakeRandHexString(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)
	_, err = hex.DecodeString(a)
	require.NoError(t, err)

	b, err := MakeRandHexString(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	empty, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWipeByteArray(t *testing.T) {
	key := GenerateRandByteArray(32)
	encoded := hex.EncodeToString(key)

	WipeByteArray(key)
	assert.Equal(t, make([]byte, 32), key)

	decoded, err := hex.DecodeString(encoded)
	require.NoError(t, err)
	assert.NotEqual(t, key, decoded, "wiping the source must not touch an encoded copy")

	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(16)
	b := GenerateRandByteArray(16)
	require.Len(t, a, 16)
	require.Len(t, b, 16)
	assert.NotEqual(t, a, b)
	assert.Empty(t, GenerateRandByteArray(0))
}
