// Package reference extracts invoice and receipt numbers from free text.
package reference

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// Explicit prefixes: "Fattura 4521", "FT. 12/2024", "Invoice #881", "n. 7", "NR:0042"
	prefixedPattern = regexp.MustCompile(`(?i)\b(?:fattura|invoice|inv|ft|num|nr|n\.)[\s.:#°º-]*(\d+(?:/\d+)?)`)

	// Fallback: any standalone run of 4 or more digits
	bareNumberPattern = regexp.MustCompile(`\b(\d{4,})\b`)
)

// Extract returns the distinct numeric references found in text, digits only
// (a slash inside "12/2024" is dropped), sorted for stable output.
func Extract(text string) []string {
	if text == "" {
		return nil
	}

	found := make(map[string]struct{})
	for _, pattern := range []*regexp.Regexp{prefixedPattern, bareNumberPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			digits := strings.ReplaceAll(m[1], "/", "")
			if digits != "" {
				found[digits] = struct{}{}
			}
		}
	}

	if len(found) == 0 {
		return nil
	}
	refs := make([]string, 0, len(found))
	for ref := range found {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// ExtractAll merges the references of several texts.
func ExtractAll(texts ...string) []string {
	found := make(map[string]struct{})
	for _, text := range texts {
		for _, ref := range Extract(text) {
			found[ref] = struct{}{}
		}
	}
	if len(found) == 0 {
		return nil
	}
	refs := make([]string, 0, len(found))
	for ref := range found {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Overlap returns the first pair (in sorted order) where one reference
// contains the other, and whether such a pair exists.
func Overlap(left, right []string) (string, string, bool) {
	for _, l := range left {
		for _, r := range right {
			if strings.Contains(l, r) || strings.Contains(r, l) {
				return l, r, true
			}
		}
	}
	return "", "", false
}
