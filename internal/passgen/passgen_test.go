package passgen

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_DefaultOptions(t *testing.T) {
	pw, err := Generate(DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, pw, DefaultLength)
}

func TestGenerate_LengthBounds(t *testing.T) {
	for _, n := range []int{0, 3, 129} {
		o := DefaultOptions()
		o.Length = n
		_, err := Generate(o)
		assert.ErrorIs(t, err, common.ErrValidation, "length %d", n)
	}
}

func TestGenerate_OnlyNumbers(t *testing.T) {
	o := Options{Length: 32, IncludeNumbers: true}
	pw, err := Generate(o)
	require.NoError(t, err)
	assert.Equal(t, "", strings.Trim(pw, charsetNumbers))
}

func TestGenerate_ExcludeSimilarAndAmbiguous(t *testing.T) {
	o := DefaultOptions()
	o.Length = MaxLength
	o.ExcludeSimilar = true
	o.ExcludeAmbiguous = true
	for i := 0; i < 20; i++ {
		pw, err := Generate(o)
		require.NoError(t, err)
		assert.False(t, strings.ContainsAny(pw, "ILOilo10"), pw)
		assert.False(t, strings.ContainsAny(pw, ambiguous), pw)
	}
}

func TestGenerate_Minimums(t *testing.T) {
	o := Options{Length: 8, IncludeLowercase: true, IncludeSymbols: true, MinSymbols: 6}
	for i := 0; i < 20; i++ {
		pw, err := Generate(o)
		require.NoError(t, err)
		symbols := 0
		for _, r := range pw {
			if strings.ContainsRune(charsetSymbols, r) {
				symbols++
			}
		}
		assert.GreaterOrEqual(t, symbols, 6, pw)
	}
}

func TestGenerate_MinimumsExceedLength(t *testing.T) {
	o := Options{Length: 4, IncludeNumbers: true, MinNumbers: 5}
	_, err := Generate(o)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestGenerate_CustomOnly(t *testing.T) {
	pw, err := Generate(Options{Length: 10, CustomCharacters: "€"})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("€", 10), pw)
}

func TestGenerate_EmptyCharset(t *testing.T) {
	_, err := Generate(Options{Length: 10})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestPassphrase(t *testing.T) {
	pp, err := Passphrase(PassphraseOptions{WordCount: 5, Separator: ".", Capitalize: true, IncludeNumbers: true})
	require.NoError(t, err)

	parts := strings.Split(pp, ".")
	require.Len(t, parts, 5)
	for _, p := range parts {
		assert.Equal(t, strings.ToUpper(p[:1]), p[:1])
	}
	last := parts[4]
	assert.Contains(t, "0123456789", last[len(last)-1:])

	_, err = Passphrase(PassphraseOptions{WordCount: 0})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		pw    string
		score int
		level string
	}{
		{"", 0, VeryWeak},
		{"abc", 0, VeryWeak},
		{"password", 2, Weak},
		{"Password1", 4, Medium},
		{"Tr0ub4dor&3x", 6, Strong},
		{"Tr0ub4dor&3xQz!9", 7, VeryStrong},
		{"aaaBBB111!!!", 5, Strong},
	}
	for _, tt := range tests {
		t.Run(tt.pw, func(t *testing.T) {
			got := CheckStrength(tt.pw)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.level, got.Strength)
		})
	}
}

func TestCheckStrength_Feedback(t *testing.T) {
	got := CheckStrength("aaa")
	assert.Contains(t, got.Feedback, "Use at least 8 characters")
	assert.Contains(t, got.Feedback, "Avoid repeated characters")
	assert.Contains(t, got.Feedback, "Include numbers")
}
