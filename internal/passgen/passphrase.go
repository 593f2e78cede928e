package passgen

import (
	"strconv"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
)

var words = []string{
	"apple", "banana", "cherry", "dragon", "elephant", "forest", "guitar", "house",
	"island", "jungle", "kitten", "lemon", "mountain", "ocean", "piano", "queen",
	"river", "sunset", "tiger", "umbrella", "violet", "window", "yellow", "zebra",
	"bridge", "castle", "dream", "eagle", "flower", "garden", "happy", "ice",
	"jazz", "knight", "light", "magic", "night", "orange", "peace", "quick",
	"rainbow", "star", "tree", "unique", "voice", "water", "extra", "young",
}

const maxWords = 20

type PassphraseOptions struct {
	WordCount      int    `json:"wordCount"`
	Separator      string `json:"separator"`
	IncludeNumbers bool   `json:"includeNumbers"`
	Capitalize     bool   `json:"capitalize"`
}

func DefaultPassphraseOptions() PassphraseOptions {
	return PassphraseOptions{WordCount: 4, Separator: "-"}
}

// Passphrase joins random dictionary words. With IncludeNumbers the last
// word gets a two-digit suffix.
func Passphrase(o PassphraseOptions) (string, error) {
	if o.WordCount < 1 || o.WordCount > maxWords {
		return "", common.Validationf("word count must be between 1 and %d", maxWords)
	}

	picked := make([]string, o.WordCount)
	for i := range picked {
		w := words[randIndex(len(words))]
		if o.Capitalize {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		if o.IncludeNumbers && i == o.WordCount-1 {
			w += strconv.Itoa(10 + randIndex(89))
		}
		picked[i] = w
	}
	return strings.Join(picked, o.Separator), nil
}
