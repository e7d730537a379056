package matcher

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

func TestScorer_InvoiceWithSupplierAndReference(t *testing.T) {
	// Arrange
	scorer := NewScorer(DefaultConfig())
	tx := model.Transaction{
		ID:          "tx1",
		Amount:      decimal.RequireFromString("-120.00"),
		Description: "Fattura 4521 ACME Srl",
		Date:        day(2024, 3, 10),
	}
	exp := model.Expense{
		ID:           "exp1",
		Amount:       decimal.RequireFromString("120.00"),
		SupplierName: "ACME Srl",
		Description:  "Fornitura materiali, fattura 4521",
		Date:         day(2024, 3, 10),
	}

	// Act
	result := scorer.Score(tx, exp)

	// Assert
	assert.GreaterOrEqual(t, result.Score, 95)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, 50, result.Breakdown.Amount.Points)
	assert.Equal(t, 20, result.Breakdown.Reference.Points)
	assert.Greater(t, result.Breakdown.Sum(), 100, "components exceed the cap before clamping")
	require.NotEmpty(t, result.Reasons)
	assert.Equal(t, "exact amount", result.Reasons[0])
}

func TestScorer_HalfAmountNoOverlap(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	tx := model.Transaction{
		Amount:      decimal.RequireFromString("-500.00"),
		Description: "Bonifico",
		Date:        day(2024, 1, 1),
	}
	exp := model.Expense{
		Amount:       decimal.RequireFromString("1000.00"),
		SupplierName: "Studio Legale Verdi",
		Description:  "Consulenza legale",
		Date:         day(2024, 6, 1),
	}

	result := scorer.Score(tx, exp)

	assert.Equal(t, 0, result.Breakdown.Amount.Points)
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Reasons)
}

func TestScorer_ReasonOrderIsFixed(t *testing.T) {
	scorer := NewScorer(DefaultConfig())
	tx := model.Transaction{
		Amount:          decimal.RequireFromString("-99.00"),
		Description:     "Noleggio furgone cantiere",
		CounterpartName: "Autonoleggio Rapido",
		Date:            day(2024, 5, 2),
		Category:        "transport",
	}
	exp := model.Expense{
		Amount:       decimal.RequireFromString("100.00"),
		Description:  "Noleggio furgone",
		SupplierName: "Rapido",
		Date:         day(2024, 5, 1),
		Category:     "Transport",
	}

	first := scorer.Score(tx, exp)
	second := scorer.Score(tx, exp)

	assert.Equal(t, first, second)
	require.Len(t, first.Reasons, 5)
	assert.Equal(t, first.Breakdown.Amount.Reason, first.Reasons[0])
	assert.Equal(t, first.Breakdown.Supplier.Reason, first.Reasons[1])
	assert.Equal(t, first.Breakdown.Semantic.Reason, first.Reasons[2])
	assert.Equal(t, first.Breakdown.Date.Reason, first.Reasons[3])
	assert.Equal(t, first.Breakdown.Category.Reason, first.Reasons[4])
}

func TestScorer_Properties(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	descriptions := []string{"", "Fattura 4521 ACME Srl", "Fornitura materiali, fattura 4521", "Bonifico SEPA", "Noleggio furgone ft 77"}
	suppliers := []string{"", "ACME Srl", "Rossi", "Autonoleggio Rapido"}
	amounts := []string{"0", "-120", "120", "-97.5", "1000"}
	base := day(2024, 3, 10)

	for i, desc := range descriptions {
		for j, supplier := range suppliers {
			for k, amount := range amounts {
				tx := model.Transaction{
					Description: desc,
					Amount:      decimal.RequireFromString(amount),
					Date:        base.AddDate(0, 0, i*3),
					Category:    "materials",
				}
				exp := model.Expense{
					Description:  descriptions[(i+j)%len(descriptions)],
					SupplierName: supplier,
					Amount:       decimal.RequireFromString(amounts[(k+1)%len(amounts)]).Abs(),
					Date:         base,
					Category:     []string{"", "materials"}[k%2],
				}

				t.Run(fmt.Sprintf("%d-%d-%d", i, j, k), func(t *testing.T) {
					result := scorer.Score(tx, exp)

					assert.GreaterOrEqual(t, result.Score, 0)
					assert.LessOrEqual(t, result.Score, 100)
					if sum := result.Breakdown.Sum(); sum <= 100 {
						assert.Equal(t, sum, result.Score)
					}
					if result.Score > 0 {
						assert.NotEmpty(t, result.Reasons)
					}
				})
			}
		}
	}
}

func TestNewScorer_DefaultsInvalidLength(t *testing.T) {
	scorer := NewScorer(Config{FuzzyTokenMinLength: 0})
	assert.Equal(t, 3, scorer.config.FuzzyTokenMinLength)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{}.Validate())
}
