package models

// Document types with type-specific comparison rules.
const (
	DocTypePANCard       = "pan_card"
	DocTypeBankStatement = "bank_statement"
	DocTypePayslip       = "payslip"
)

// ExtractedFields are the identity and financial values read from a scanned document.
// Any field may be nil when the extractor did not find it.
type ExtractedFields struct {
	Name   *string  `json:"name"`
	DOB    *string  `json:"dob"`
	PAN    *string  `json:"pan"`
	Salary *float64 `json:"salary"`
}

// FieldComparison is the verdict for one compared field.
type FieldComparison struct {
	Extracted  any     `json:"extracted"`
	Database   any     `json:"database"`
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	// Details and DateCheck are diagnostics; they never change Match or Confidence.
	Details   *PANComparison `json:"details,omitempty"`
	DateCheck *DateCheck     `json:"date_check,omitempty"`
}

// DateCheck is a day-tolerant reading of two date values.
type DateCheck struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
}

// PANComparison is the graded comparison of two PAN strings.
type PANComparison struct {
	Match               bool    `json:"match"`
	Confidence          float64 `json:"confidence"`
	ExactMatch          bool    `json:"exact_match,omitempty"`
	PartialMatch        bool    `json:"partial_match,omitempty"`
	Similarity          float64 `json:"similarity_score"`
	FormatValid         bool    `json:"format_valid"`
	NormalizedExtracted string  `json:"normalized_extracted"`
	NormalizedDatabase  string  `json:"normalized_db"`
}

// ComparisonSummary counts matching entries.
type ComparisonSummary struct {
	Matches     int `json:"matches"`
	TotalFields int `json:"total_fields"`
}

// DocumentComparison is the per-field result map plus the aggregate score.
// OverallScore is the mean confidence of the fields actually compared.
type DocumentComparison struct {
	Comparisons    map[string]FieldComparison `json:"comparisons"`
	OverallScore   float64                    `json:"overall_score"`
	FieldsCompared int                        `json:"fields_compared"`
	Summary        ComparisonSummary          `json:"summary"`
}

// FinanceReport is returned for identity/financial document verification.
type FinanceReport struct {
	RunID           string             `json:"run_id"`
	DocumentID      int64              `json:"document_id,omitempty"`
	DocumentType    string             `json:"document_type"`
	ExtractedFields ExtractedFields    `json:"extracted_data"`
	Proposer        *Proposer          `json:"proposer_data"`
	Comparison      DocumentComparison `json:"comparison"`
	OverallMatch    bool               `json:"overall_match"`
	ConfidenceScore float64            `json:"confidence_score"`
	Message         string             `json:"message"`
}
