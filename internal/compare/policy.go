// Package compare matches fields extracted from identity and financial documents against
// the stored proposer record.
package compare

// Policy holds the tunable thresholds of document comparison.
type Policy struct {
	// NameStrongSimilarity and NameWeakSimilarity split name similarity into the
	// 0.95 / 0.75 / 0.2 confidence tiers; a name matches at or above the weak threshold.
	NameStrongSimilarity float64 `json:"name_strong_similarity" yaml:"name_strong_similarity"`
	NameWeakSimilarity   float64 `json:"name_weak_similarity" yaml:"name_weak_similarity"`
	// SalaryTolerance is the accepted relative deviation from annual income / 12.
	SalaryTolerance float64 `json:"salary_tolerance" yaml:"salary_tolerance"`
	// VerificationThreshold is the overall score at which a document counts as verified.
	VerificationThreshold float64 `json:"verification_threshold" yaml:"verification_threshold"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		NameStrongSimilarity:  0.85,
		NameWeakSimilarity:    0.6,
		SalaryTolerance:       0.10,
		VerificationThreshold: 0.8,
	}
}

// ApplyDefaults fills zero values from DefaultPolicy.
func (p *Policy) ApplyDefaults() {
	d := DefaultPolicy()
	if p.NameStrongSimilarity == 0 {
		p.NameStrongSimilarity = d.NameStrongSimilarity
	}
	if p.NameWeakSimilarity == 0 {
		p.NameWeakSimilarity = d.NameWeakSimilarity
	}
	if p.SalaryTolerance == 0 {
		p.SalaryTolerance = d.SalaryTolerance
	}
	if p.VerificationThreshold == 0 {
		p.VerificationThreshold = d.VerificationThreshold
	}
}
