// Package identity cross-checks the patient named on a medical report against the proposer.
package identity

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/docverify/internal/models"
	"go.uber.org/zap"
)

// anonymizationMarker is how extractors mask redacted name tokens.
const anonymizationMarker = "xxx"

var nonDigit = regexp.MustCompile(`\D`)

// Verifier compares patient name, age, and sex with tolerance rules.
type Verifier struct {
	ageTolerance int
	logger       *zap.Logger
}

// NewVerifier creates a verifier accepting an age difference of one year; logger may be nil.
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{ageTolerance: 1, logger: logger}
}

// Verify never fails: missing data leaves a check nil, and any unexpected failure is
// recorded in Issues while the checks completed so far are kept.
func (v *Verifier) Verify(patient *models.PatientInfo, proposer *models.Proposer) (result models.IdentityVerification) {
	result.Issues = []string{}

	defer func() {
		if r := recover(); r != nil {
			result.Issues = append(result.Issues, fmt.Sprintf("Verification error: %v", r))
			result.Confidence = confidence(result.NameMatch, result.AgeMatch, result.SexMatch)
			v.logger.Error("identity verification error", zap.Any("panic", r))
		}
	}()

	if patient == nil || proposer == nil {
		result.Issues = append(result.Issues, "Missing patient or proposer data for verification")
		return result
	}

	result.Details = models.IdentityDetails{
		PatientName:  orNil(patient.Name),
		ProposerName: orNil(proposer.CustomerName),
		PatientAge:   orNil(patient.Age),
		PatientSex:   orNil(patient.Sex),
	}
	if proposer.Age != nil {
		result.Details.ProposerAge = *proposer.Age
	}
	if proposer.Sex != nil {
		result.Details.ProposerSex = *proposer.Sex
	}

	v.checkName(&result, text(patient.Name), proposer.CustomerName)
	v.checkAge(&result, patient.Age, proposer.Age)
	v.checkSex(&result, text(patient.Sex), proposer.Sex)

	result.Confidence = confidence(result.NameMatch, result.AgeMatch, result.SexMatch)
	v.logger.Debug("identity verification completed",
		zap.Int("confidence", result.Confidence),
		zap.Int("issues", len(result.Issues)),
	)
	return result
}

func (v *Verifier) checkName(result *models.IdentityVerification, patientName, proposerName string) {
	patient := strings.ToLower(strings.TrimSpace(patientName))
	proposer := strings.ToLower(strings.TrimSpace(proposerName))
	if patient == "" || proposer == "" {
		result.Issues = append(result.Issues, "Missing name data")
		return
	}

	if !strings.Contains(patient, anonymizationMarker) {
		result.NameMatch = boolPtr(strings.Contains(patient, proposer) || strings.Contains(proposer, patient))
		if !*result.NameMatch {
			result.Issues = append(result.Issues, "Names do not match")
		}
		return
	}

	var tokens []string
	for _, tok := range strings.Fields(patient) {
		if strings.Contains(tok, anonymizationMarker) || len([]rune(tok)) <= 1 {
			continue
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		result.Issues = append(result.Issues, "Name completely anonymized")
		return
	}

	matched := false
	for _, tok := range tokens {
		if strings.Contains(proposer, tok) {
			matched = true
			break
		}
	}
	result.NameMatch = boolPtr(matched)
	if !matched {
		result.Issues = append(result.Issues, "No matching name tokens found")
	}
}

func (v *Verifier) checkAge(result *models.IdentityVerification, patientAge any, proposerAge *int) {
	raw := text(patientAge)
	if strings.TrimSpace(raw) == "" || proposerAge == nil {
		result.Issues = append(result.Issues, "Missing age data")
		return
	}
	age, err := strconv.Atoi(nonDigit.ReplaceAllString(raw, ""))
	if err != nil {
		result.Issues = append(result.Issues, "Invalid age data")
		return
	}
	diff := age - *proposerAge
	if diff < 0 {
		diff = -diff
	}
	result.AgeMatch = boolPtr(diff <= v.ageTolerance)
	if !*result.AgeMatch {
		result.Issues = append(result.Issues, fmt.Sprintf("Age mismatch: %d vs %d", age, *proposerAge))
	}
}

func (v *Verifier) checkSex(result *models.IdentityVerification, patientSex string, proposerSex *string) {
	if strings.TrimSpace(patientSex) == "" || proposerSex == nil || strings.TrimSpace(*proposerSex) == "" {
		result.Issues = append(result.Issues, "Missing gender data")
		return
	}
	result.SexMatch = boolPtr(strings.EqualFold(strings.TrimSpace(patientSex), strings.TrimSpace(*proposerSex)))
	if !*result.SexMatch {
		result.Issues = append(result.Issues, "Gender mismatch")
	}
}

// confidence is the rounded share of passed checks among the checks performed.
func confidence(checks ...*bool) int {
	considered, passed := 0, 0
	for _, c := range checks {
		if c == nil {
			continue
		}
		considered++
		if *c {
			passed++
		}
	}
	if considered == 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(considered)))
}

// text renders a JSON scalar; whole floats print without a fraction.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func orNil(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

func boolPtr(b bool) *bool { return &b }
