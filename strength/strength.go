// Package strength scores secret strings by estimated entropy and classifies
// them into tiers. Analysis is a pure function over the input: nothing is
// persisted and no dependency is consulted, so results are reproducible for
// fixed inputs.
package strength

import "math"

// Level is a strength tier. Tiers are ordered: weak < medium < strong <
// very-strong.
type Level string

const (
	Weak       Level = "weak"
	Medium     Level = "medium"
	Strong     Level = "strong"
	VeryStrong Level = "very-strong"
)

// atLeast reports whether l meets the minimum tier min.
func (l Level) atLeast(min Level) bool {
	return rank(l) >= rank(min)
}

// Meets reports whether l is at or above the given minimum tier.
func (l Level) Meets(min Level) bool {
	return l.atLeast(min)
}

func rank(l Level) int {
	switch l {
	case Weak:
		return 0
	case Medium:
		return 1
	case Strong:
		return 2
	case VeryStrong:
		return 3
	}
	return -1
}

// Character-class sizes used for the charset estimate. Specials are
// approximated at 32, the printable ASCII punctuation range.
const (
	lowerClassSize   = 26
	upperClassSize   = 26
	digitClassSize   = 10
	specialClassSize = 32
)

// Analysis is the result of scoring one secret.
type Analysis struct {
	EntropyBytes float64
	HasUpper     bool
	HasLower     bool
	HasDigit     bool
	HasSpecial   bool
	Length       int
	Strength     Level
}

// Analyze scores a secret. Entropy in bits is length * log2(charset size),
// where the charset size is the sum of the sizes of the character classes
// present; the reported value is in bytes. Tier thresholds:
//
//	weak        entropy < 40 bits or length < 12
//	medium      entropy < 60 bits or length < 16
//	strong      entropy < 80 bits or length < 32
//	very-strong otherwise
func Analyze(secret string) Analysis {
	a := Analysis{Length: len(secret)}

	for i := 0; i < len(secret); i++ {
		c := secret[i]
		switch {
		case c >= 'a' && c <= 'z':
			a.HasLower = true
		case c >= 'A' && c <= 'Z':
			a.HasUpper = true
		case c >= '0' && c <= '9':
			a.HasDigit = true
		default:
			a.HasSpecial = true
		}
	}

	charset := 0
	if a.HasLower {
		charset += lowerClassSize
	}
	if a.HasUpper {
		charset += upperClassSize
	}
	if a.HasDigit {
		charset += digitClassSize
	}
	if a.HasSpecial {
		charset += specialClassSize
	}

	var bits float64
	if a.Length > 0 && charset > 0 {
		bits = float64(a.Length) * math.Log2(float64(charset))
	}
	a.EntropyBytes = bits / 8

	switch {
	case bits < 40 || a.Length < 12:
		a.Strength = Weak
	case bits < 60 || a.Length < 16:
		a.Strength = Medium
	case bits < 80 || a.Length < 32:
		a.Strength = Strong
	default:
		a.Strength = VeryStrong
	}

	return a
}
