// Package textnorm prepares free text for comparison: case folding,
// accent removal and tokenization on any rune that is not a letter or digit.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokens returns the folded tokens of s in order of appearance.
// An empty or separator-only string yields no tokens.
func Tokens(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(fold(s), isSeparator)
}

// Normalize returns the tokens of s joined by single spaces, so that
// substring containment between two normalized strings ignores case,
// accents and punctuation.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Words returns the distinct tokens of s with at least minLen runes,
// in order of first appearance.
func Words(s string, minLen int) []string {
	tokens := Tokens(s)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tokens))
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minLen {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		words = append(words, tok)
	}
	return words
}

// Overlap counts the words of a that also appear in b.
// Both slices are expected to hold distinct words.
func Overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}
	common := 0
	for _, w := range a {
		if _, ok := set[w]; ok {
			common++
		}
	}
	return common
}

// fold lower-cases s and strips combining marks ("Società" -> "societa").
// Transformers are stateful, so a fresh chain is built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
