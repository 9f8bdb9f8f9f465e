package compare

import (
	"math"
	"regexp"
	"strings"

	"github.com/hyperjump/docverify/internal/dates"
	"github.com/hyperjump/docverify/internal/models"
	"github.com/hyperjump/docverify/internal/similarity"
	"github.com/hyperjump/docverify/pkg/utils"
	"go.uber.org/zap"
)

// Verification source labels.
const (
	SourcePANOffice     = "PAN Office"
	SourceBankStatement = "Bank Statement"
	SourceSalarySlip    = "Salary Slip"
)

var (
	// initialToken matches honorifics and middle initials such as "Mr." or "K.".
	initialToken = regexp.MustCompile(`\b\w+\.\s*`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Comparator compares extracted document fields with a proposer record.
// It holds no mutable state and is safe for concurrent use.
type Comparator struct {
	policy Policy
	logger *zap.Logger
}

// NewComparator creates a comparator. Zero policy values take defaults; logger may be nil.
func NewComparator(policy Policy, logger *zap.Logger) *Comparator {
	policy.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparator{policy: policy, logger: logger}
}

// Policy returns the effective thresholds.
func (c *Comparator) Policy() Policy {
	return c.policy
}

// CompareDocument compares the fields that apply to documentType:
// name always; DOB and PAN for pan_card; salary for bank_statement and payslip.
// Fields without data on both sides are not counted toward the overall score.
func (c *Comparator) CompareDocument(fields models.ExtractedFields, proposer models.Proposer, documentType string) models.DocumentComparison {
	docType := strings.ToLower(strings.TrimSpace(documentType))
	isPAN := docType == models.DocTypePANCard
	isIncome := docType == models.DocTypeBankStatement || docType == models.DocTypePayslip

	comparisons := make(map[string]models.FieldComparison)
	var totalScore float64
	fieldsCompared := 0

	nameSource := SourceSalarySlip
	salarySource := SourceSalarySlip
	switch docType {
	case models.DocTypePANCard:
		nameSource = SourcePANOffice
	case models.DocTypeBankStatement:
		nameSource = SourceBankStatement
		salarySource = SourceBankStatement
	}

	if present(fields.Name) && proposer.CustomerName != "" {
		sim := similarity.Similarity(NormalizeName(*fields.Name), NormalizeName(proposer.CustomerName))
		confidence := 0.2
		switch {
		case sim >= c.policy.NameStrongSimilarity:
			confidence = 0.95
		case sim >= c.policy.NameWeakSimilarity:
			confidence = 0.75
		}
		comparisons["name"] = models.FieldComparison{
			Extracted:  *fields.Name,
			Database:   proposer.CustomerName,
			Match:      sim >= c.policy.NameWeakSimilarity,
			Confidence: confidence,
			Source:     nameSource,
		}
		totalScore += confidence
		fieldsCompared++
	} else {
		comparisons["name"] = models.FieldComparison{
			Extracted: deref(fields.Name),
			Database:  nullable(proposer.CustomerName),
			Source:    nameSource,
		}
	}

	if isPAN && present(fields.DOB) && present(proposer.DOB) {
		match := NormalizeName(*fields.DOB) == NormalizeName(*proposer.DOB)
		entry := models.FieldComparison{
			Extracted:  *fields.DOB,
			Database:   *proposer.DOB,
			Match:      match,
			Confidence: scoreExact(match),
			Source:     SourcePANOffice,
		}
		if !match {
			dm := dates.CompareFlexibleDates(*fields.DOB, *proposer.DOB)
			entry.DateCheck = &models.DateCheck{Match: dm.Match, Confidence: dm.Confidence}
		}
		comparisons["dob"] = entry
		totalScore += entry.Confidence
		fieldsCompared++
	}

	if isPAN && present(fields.PAN) && present(proposer.PANNumber) {
		match := NormalizeName(*fields.PAN) == NormalizeName(*proposer.PANNumber)
		details := ComparePAN(*fields.PAN, *proposer.PANNumber)
		if !match {
			c.logger.Debug("pan mismatch",
				zap.String("extracted", utils.MaskIdentifier(details.NormalizedExtracted, 4)),
				zap.String("database", utils.MaskIdentifier(details.NormalizedDatabase, 4)),
				zap.Float64("similarity", details.Similarity),
			)
		}
		comparisons["pan"] = models.FieldComparison{
			Extracted:  *fields.PAN,
			Database:   *proposer.PANNumber,
			Match:      match,
			Confidence: scoreExact(match),
			Source:     SourcePANOffice,
			Details:    &details,
		}
		totalScore += scoreExact(match)
		fieldsCompared++
	}

	if isIncome {
		if fields.Salary != nil && proposer.AnnualIncome != nil && *proposer.AnnualIncome != 0 {
			monthly := *proposer.AnnualIncome / 12
			match := math.Abs(*fields.Salary-monthly) <= math.Abs(monthly)*c.policy.SalaryTolerance
			confidence := 0.2
			if match {
				confidence = 0.9
			}
			comparisons["salary"] = models.FieldComparison{
				Extracted:  *fields.Salary,
				Database:   monthly,
				Match:      match,
				Confidence: confidence,
				Source:     salarySource,
			}
			totalScore += confidence
			fieldsCompared++
		} else {
			var expected any
			if proposer.AnnualIncome != nil && *proposer.AnnualIncome != 0 {
				expected = *proposer.AnnualIncome / 12
			}
			var extracted any
			if fields.Salary != nil {
				extracted = *fields.Salary
			}
			comparisons["salary"] = models.FieldComparison{
				Extracted: extracted,
				Database:  expected,
				Source:    salarySource,
			}
		}
	}

	overall := 0.0
	if fieldsCompared > 0 {
		overall = totalScore / float64(fieldsCompared)
	}
	matches := 0
	for _, cmp := range comparisons {
		if cmp.Match {
			matches++
		}
	}

	c.logger.Debug("document comparison completed",
		zap.String("document_type", docType),
		zap.Int("fields_compared", fieldsCompared),
		zap.Float64("overall_score", overall),
		zap.Int("matches", matches),
	)

	return models.DocumentComparison{
		Comparisons:    comparisons,
		OverallScore:   overall,
		FieldsCompared: fieldsCompared,
		Summary:        models.ComparisonSummary{Matches: matches, TotalFields: fieldsCompared},
	}
}

// Verified reports whether a comparison reaches the verification threshold.
func (c *Comparator) Verified(cmp models.DocumentComparison) bool {
	return cmp.FieldsCompared > 0 && cmp.OverallScore >= c.policy.VerificationThreshold
}

// NormalizeName lowercases, trims, drops "word." tokens (honorifics, initials),
// and collapses whitespace.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = initialToken.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func scoreExact(match bool) float64 {
	if match {
		return 0.99
	}
	return 0
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
