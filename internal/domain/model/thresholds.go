package model

// Default thresholds.
const (
	DefaultMinScore            = 30
	DefaultAutoThreshold       = 70
	DefaultFuzzyTokenMinLength = 3
)

// ValidateThresholds checks a minimum suggestion score and an auto-reconcile
// threshold: both must lie in [0,100] and minScore may not exceed autoThreshold.
func ValidateThresholds(minScore, autoThreshold int) error {
	if minScore < 0 || minScore > 100 {
		return &ConfigurationError{Field: "min_score_threshold", Reason: "must be between 0 and 100"}
	}
	if autoThreshold < 0 || autoThreshold > 100 {
		return &ConfigurationError{Field: "auto_reconcile_threshold", Reason: "must be between 0 and 100"}
	}
	if minScore > autoThreshold {
		return &ConfigurationError{Field: "min_score_threshold", Reason: "must not exceed auto_reconcile_threshold"}
	}
	return nil
}
