package matcher

import (
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Maximum points per component.
const (
	MaxAmountPoints    = 50
	MaxSupplierPoints  = 30
	MaxReferencePoints = 20
	MaxSemanticPoints  = 15
	MaxDatePoints      = 10
	MaxCategoryPoints  = 5

	MaxScore = 100
)

// Config holds matcher configuration
type Config struct {
	// FuzzyTokenMinLength is the shortest word counted by the supplier
	// word-overlap check; semantic comparison counts words strictly longer.
	FuzzyTokenMinLength int // Default: 3
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		FuzzyTokenMinLength: model.DefaultFuzzyTokenMinLength,
	}
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	if c.FuzzyTokenMinLength < 1 {
		return &model.ConfigurationError{Field: "fuzzy_token_min_length", Reason: "must be at least 1"}
	}
	return nil
}

// Partial is the contribution of a single scorer. Reason is empty
// exactly when Points is zero.
type Partial struct {
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"`
}

func none() Partial { return Partial{} }

func award(points int, reason string) Partial {
	return Partial{Points: points, Reason: reason}
}

// Breakdown holds every component of a match score.
type Breakdown struct {
	Amount    Partial `json:"amount"`
	Supplier  Partial `json:"supplier"`
	Reference Partial `json:"reference"`
	Semantic  Partial `json:"semantic"`
	Date      Partial `json:"date"`
	Category  Partial `json:"category"`
}

// ordered lists the components in reason order.
func (b Breakdown) ordered() []Partial {
	return []Partial{b.Amount, b.Supplier, b.Reference, b.Semantic, b.Date, b.Category}
}

// Sum returns the unclamped total of all components.
func (b Breakdown) Sum() int {
	total := 0
	for _, p := range b.ordered() {
		total += p.Points
	}
	return total
}

// Reasons returns the non-empty reasons in the fixed order
// amount, supplier, reference, semantic, date, category.
func (b Breakdown) Reasons() []string {
	reasons := make([]string, 0, 6)
	for _, p := range b.ordered() {
		if p.Reason != "" {
			reasons = append(reasons, p.Reason)
		}
	}
	return reasons
}

// Result is the combined score of one transaction/expense pair.
type Result struct {
	Score     int       `json:"score"` // 0-100
	Reasons   []string  `json:"reasons"`
	Breakdown Breakdown `json:"breakdown"`
}
