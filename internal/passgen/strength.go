package passgen

import "strings"

// Strength levels reported by CheckStrength.
const (
	VeryWeak   = "Very Weak"
	Weak       = "Weak"
	Medium     = "Medium"
	Strong     = "Strong"
	VeryStrong = "Very Strong"
)

var commonSequences = []string{"123", "abc", "qwe"}

type Strength struct {
	Score    int      `json:"score"`
	Strength string   `json:"strength"`
	Feedback []string `json:"feedback"`
}

func hasRun(pw string, n int) bool {
	var prev rune
	count := 0
	for _, r := range pw {
		if count > 0 && r == prev {
			count++
		} else {
			prev, count = r, 1
		}
		if count >= n {
			return true
		}
	}
	return false
}

func isSymbol(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
}

// CheckStrength scores pw from length, character classes and common
// weaknesses. The reported score is never negative.
func CheckStrength(pw string) Strength {
	score := 0
	feedback := make([]string, 0)

	n := len([]rune(pw))
	if n >= 8 {
		score++
	} else {
		feedback = append(feedback, "Use at least 8 characters")
	}
	if n >= 12 {
		score++
	}
	if n >= 16 {
		score++
	}

	classes := []struct {
		has  func(rune) bool
		hint string
	}{
		{func(r rune) bool { return r >= 'a' && r <= 'z' }, "Include lowercase letters"},
		{func(r rune) bool { return r >= 'A' && r <= 'Z' }, "Include uppercase letters"},
		{func(r rune) bool { return r >= '0' && r <= '9' }, "Include numbers"},
		{isSymbol, "Include special characters"},
	}
	for _, c := range classes {
		if strings.ContainsFunc(pw, c.has) {
			score++
		} else {
			feedback = append(feedback, c.hint)
		}
	}

	if hasRun(pw, 3) {
		score--
		feedback = append(feedback, "Avoid repeated characters")
	}
	lower := strings.ToLower(pw)
	for _, seq := range commonSequences {
		if strings.Contains(lower, seq) {
			score--
			feedback = append(feedback, "Avoid common sequences")
			break
		}
	}

	level := VeryWeak
	switch {
	case score >= 7:
		level = VeryStrong
	case score >= 5:
		level = Strong
	case score >= 3:
		level = Medium
	case score >= 1:
		level = Weak
	}

	return Strength{Score: max(0, score), Strength: level, Feedback: feedback}
}
