// Package categorizer assigns a category to free text with a keyword
// lookup table.
//
// It sits outside the scorer: the engine only sees the resulting category
// tag, and callers may plug in any function with the Strategy signature.
package categorizer

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/eshaffer321/expense-reconciler/internal/domain/textnorm"
)

// Strategy maps text to a category and a confidence in [0,1].
// An empty category means no opinion.
type Strategy func(text string) (category string, confidence float64)

// Confidence awarded per kind of keyword hit
const (
	ExactConfidence = 1.0
	FuzzyConfidence = 0.8
)

// minFuzzyLength is the shortest keyword matched with one typo allowed
const minFuzzyLength = 5

// Rule maps keywords to a category. Keywords may contain several words.
type Rule struct {
	Category string   `json:"category" yaml:"category"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Result is the outcome of categorizing one text
type Result struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Keyword    string  `json:"keyword,omitempty"`
}

// Cache interface for categorization results
type Cache interface {
	Get(key string) (Result, bool)
	Set(key string, value Result)
}

// Categorizer matches text against an ordered list of rules
type Categorizer struct {
	rules []compiledRule
	cache Cache
}

type compiledRule struct {
	category string
	keywords []string // normalized
}

// NewCategorizer creates a new categorizer. cache may be nil.
func NewCategorizer(rules []Rule, cache Cache) *Categorizer {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{category: rule.Category}
		for _, kw := range rule.Keywords {
			if norm := textnorm.Normalize(kw); norm != "" {
				cr.keywords = append(cr.keywords, norm)
			}
		}
		if cr.category != "" && len(cr.keywords) > 0 {
			compiled = append(compiled, cr)
		}
	}
	return &Categorizer{rules: compiled, cache: cache}
}

// Categorize returns the best matching rule for text.
// Earlier rules win ties.
func (c *Categorizer) Categorize(text string) Result {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return Result{}
	}
	if c.cache != nil {
		if cached, ok := c.cache.Get(normalized); ok {
			return cached
		}
	}

	tokens := textnorm.Tokens(normalized)
	padded := " " + normalized + " "

	var best Result
	for _, rule := range c.rules {
		for _, kw := range rule.keywords {
			confidence := matchKeyword(kw, padded, tokens)
			if confidence > best.Confidence {
				best = Result{Category: rule.category, Confidence: confidence, Keyword: kw}
			}
		}
		if best.Confidence == ExactConfidence {
			break
		}
	}

	if c.cache != nil {
		c.cache.Set(normalized, best)
	}
	return best
}

// Strategy exposes the categorizer as a Strategy function
func (c *Categorizer) Strategy() Strategy {
	return func(text string) (string, float64) {
		r := c.Categorize(text)
		return r.Category, r.Confidence
	}
}

// matchKeyword returns the confidence of kw appearing in the text
func matchKeyword(kw, padded string, tokens []string) float64 {
	if strings.Contains(padded, " "+kw+" ") {
		return ExactConfidence
	}
	if strings.Contains(kw, " ") || len([]rune(kw)) < minFuzzyLength {
		return 0
	}
	for _, token := range tokens {
		if levenshtein.ComputeDistance(kw, token) <= 1 {
			return FuzzyConfidence
		}
	}
	return 0
}
