// Package passgen generates random passwords and passphrases and scores
// password strength.
package passgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
)

const (
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetNumbers   = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	similarUpper   = "ILO"
	similarLower   = "ilo"
	similarNumbers = "10"
	ambiguous      = "{}[]()/\\'\"`,;.<>"

	MinLength     = 4
	MaxLength     = 128
	DefaultLength = 16
)

// Options controls Generate. Use DefaultOptions and override fields.
type Options struct {
	Length           int    `json:"length"`
	IncludeUppercase bool   `json:"includeUppercase"`
	IncludeLowercase bool   `json:"includeLowercase"`
	IncludeNumbers   bool   `json:"includeNumbers"`
	IncludeSymbols   bool   `json:"includeSymbols"`
	ExcludeSimilar   bool   `json:"excludeSimilar"`
	ExcludeAmbiguous bool   `json:"excludeAmbiguous"`
	CustomCharacters string `json:"customCharacters"`
	MinUppercase     int    `json:"minUppercase"`
	MinLowercase     int    `json:"minLowercase"`
	MinNumbers       int    `json:"minNumbers"`
	MinSymbols       int    `json:"minSymbols"`
}

func DefaultOptions() Options {
	return Options{
		Length:           DefaultLength,
		IncludeUppercase: true,
		IncludeLowercase: true,
		IncludeNumbers:   true,
		IncludeSymbols:   true,
	}
}

// removeChars drops every rune of chars from s.
func removeChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}

type requirement struct {
	chars string
	min   int
}

func randIndex(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return int(idx.Int64())
}

func pick(chars []rune) rune {
	return chars[randIndex(len(chars))]
}

// Generate returns a random password. Per-class minimums are placed at
// distinct random positions; the rest is drawn from the whole charset.
func Generate(o Options) (string, error) {
	if o.Length < MinLength || o.Length > MaxLength {
		return "", common.Validationf("length must be between %d and %d", MinLength, MaxLength)
	}

	var (
		charset strings.Builder
		reqs    []requirement
	)
	add := func(include bool, chars, drop string, min int) {
		if !include {
			return
		}
		chars = removeChars(chars, drop)
		charset.WriteString(chars)
		if min > 0 {
			reqs = append(reqs, requirement{chars: chars, min: min})
		}
	}

	similar := ""
	if o.ExcludeSimilar {
		similar = similarUpper + similarLower + similarNumbers
	}
	symbolsDrop := ""
	if o.ExcludeAmbiguous {
		symbolsDrop = ambiguous
	}
	add(o.IncludeUppercase, charsetUppercase, similar, o.MinUppercase)
	add(o.IncludeLowercase, charsetLowercase, similar, o.MinLowercase)
	add(o.IncludeNumbers, charsetNumbers, similar, o.MinNumbers)
	add(o.IncludeSymbols, charsetSymbols, symbolsDrop, o.MinSymbols)
	charset.WriteString(o.CustomCharacters)

	all := []rune(charset.String())
	if len(all) == 0 {
		return "", common.Validationf("no character set selected")
	}

	total := 0
	for _, r := range reqs {
		total += r.min
	}
	if total > o.Length {
		return "", common.Validationf("minimum character counts exceed length %d", o.Length)
	}

	out := make([]rune, o.Length)
	free := make([]int, o.Length)
	for i := range free {
		free[i] = i
	}
	for _, r := range reqs {
		chars := []rune(r.chars)
		for i := 0; i < r.min; i++ {
			j := randIndex(len(free))
			out[free[j]] = pick(chars)
			free = append(free[:j], free[j+1:]...)
		}
	}
	for _, pos := range free {
		out[pos] = pick(all)
	}

	return string(out), nil
}
