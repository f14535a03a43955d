// Package merchant resolves raw statement descriptors to merchant category codes.
package merchant

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

var corporateSuffixes = map[string]bool{
	"INC": true, "LLC": true, "LTD": true, "CORP": true, "CORPORATION": true,
	"CO": true, "COMPANY": true, "PVT": true, "PRIVATE": true, "LIMITED": true, "PLC": true,
}

// Normalize canonicalizes a merchant descriptor for matching:
// "MCDONALD'S #12345 ANYTOWN USA" becomes "MCDONALDS ANYTOWN USA".
func Normalize(raw string) string {
	return strings.Join(Tokens(raw), " ")
}

// Tokens returns the normalized tokens of raw.
func Tokens(raw string) []string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		switch {
		case r == '\'' || r == '’' || r == '`':
			// MCDONALD'S -> MCDONALDS
		case r == '#' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for i, f := range fields {
		if strings.HasPrefix(f, "#") || isNumeric(f) {
			continue
		}
		f = strings.ReplaceAll(f, "#", "")
		if f == "" {
			continue
		}
		if i > 0 && corporateSuffixes[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// minFreeSubstring is the shortest pattern allowed to match inside a token.
const minFreeSubstring = 5

// ContainsPattern reports whether the normalized pattern occurs in the
// normalized name. Patterns shorter than five characters must cover whole
// tokens, so "IRS" does not match "THIRSTY LION PUB".
func ContainsPattern(name, pattern string) bool {
	if pattern == "" {
		return false
	}
	if len(pattern) >= minFreeSubstring {
		return strings.Contains(name, pattern)
	}
	return strings.Contains(" "+name+" ", " "+pattern+" ")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// leadingWindows returns "T1", "T1 T2", ... up to the full name.
func leadingWindows(tokens []string) []string {
	windows := make([]string, len(tokens))
	for i := range tokens {
		windows[i] = strings.Join(tokens[:i+1], " ")
	}
	return windows
}

var levenshteinOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.DistanceForStrings(ra, rb, levenshteinOptions)
	return 1 - float64(distance)/float64(longest)
}
