package models

import "fmt"

// OutOfRangeReason is attached to every range finding.
const OutOfRangeReason = "Value outside Normal range"

// TestResult is one lab result item of an extraction. Value and ReferenceRange keep
// the dynamic JSON shape they arrived in.
type TestResult struct {
	TestName       string `json:"test_name,omitempty"`
	Value          any    `json:"value"`
	ReferenceRange any    `json:"reference_range"`
	Unit           string `json:"unit,omitempty"`
}

// TestResultFromMap reads a results item. ok is false when the item is not an object.
func TestResultFromMap(raw any) (TestResult, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return TestResult{}, false
	}
	return TestResult{
		TestName:       stringify(m["test_name"]),
		Value:          m["value"],
		ReferenceRange: m["reference_range"],
		Unit:           stringify(m["unit"]),
	}, true
}

// RangeFinding is emitted only for results that are out of their normal range.
type RangeFinding struct {
	Parameter      string `json:"parameter"`
	Value          any    `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange any    `json:"reference_range"`
	RangeField     string `json:"range_field"`
	Reason         string `json:"reason"`
}

// RangeAnalysis aggregates range classification over an extraction's results.
// Skipped counts results whose value or range could not be interpreted.
type RangeAnalysis struct {
	TotalParams      int            `json:"totalParams"`
	OutOfRangeParams []RangeFinding `json:"outOfRangeParams"`
	SkippedParams    int            `json:"skippedParams"`
}

// PatientInfo is the identity block of a medical extraction.
type PatientInfo struct {
	Name any `json:"Name"`
	Age  any `json:"Age"`
	Sex  any `json:"Sex"`
}

// PatientInfoFromExtraction reads extraction["patient_info"]; ok is false when absent.
func PatientInfoFromExtraction(extraction map[string]any) (*PatientInfo, bool) {
	m, ok := extraction["patient_info"].(map[string]any)
	if !ok || m == nil {
		return nil, false
	}
	return &PatientInfo{Name: m["Name"], Age: m["Age"], Sex: m["Sex"]}, true
}

// IdentityDetails echoes the compared values.
type IdentityDetails struct {
	PatientName  any `json:"patientName"`
	ProposerName any `json:"proposerName"`
	PatientAge   any `json:"patientAge"`
	ProposerAge  any `json:"proposerAge"`
	PatientSex   any `json:"patientSex"`
	ProposerSex  any `json:"proposerSex"`
}

// IdentityVerification is the cross-check of a report's patient against the proposer.
// A nil check was not performed and is excluded from Confidence.
type IdentityVerification struct {
	NameMatch  *bool           `json:"nameMatch"`
	AgeMatch   *bool           `json:"ageMatch"`
	SexMatch   *bool           `json:"sexMatch"`
	Confidence int             `json:"confidence"`
	Issues     []string        `json:"issues"`
	Details    IdentityDetails `json:"details"`
}

// MedicalReport is returned for lab report verification.
type MedicalReport struct {
	RunID                string                `json:"run_id"`
	DocumentID           int64                 `json:"document_id,omitempty"`
	Proposer             *Proposer             `json:"proposer_info,omitempty"`
	ExtractedData        map[string]any        `json:"extracted_data"`
	RangeAnalysis        RangeAnalysis         `json:"range_analysis"`
	IdentityVerification *IdentityVerification `json:"identity_verification,omitempty"`
	StreamStatus         string                `json:"stream_status,omitempty"`
	TotalPages           int                   `json:"total_pages"`
	Message              string                `json:"message"`
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
