package ranges

import (
	"fmt"
	"testing"

	"github.com/hyperjump/docverify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_GenericPatterns(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		name   string
		value  any
		rng    any
		test   string
		expect Verdict
	}{
		{"dash inside", "90", "70 - 110 mg/dl", "Glucose Fasting", VerdictInRange},
		{"dash lower bound inclusive", 70.0, "70-110", "Glucose", VerdictInRange},
		{"dash upper bound inclusive", 110.0, "70 -110", "Glucose", VerdictInRange},
		{"dash above", "120", "70 - 110 mg/dL", "Glucose", VerdictOutOfRange},
		{"dash below", "3.9", "4.0 - 11.0", "WBC", VerdictOutOfRange},
		{"to", "4.2", "3.5 to 5.5 mmol/L", "Potassium", VerdictInRange},
		{"to upper case", "6", "3.5 TO 5.5", "Potassium", VerdictOutOfRange},
		{"less than percent", "5.5", "< 5.7 %", "HbA1c", VerdictInRange},
		{"less than strict", "5.7", "<5.7", "HbA1c", VerdictOutOfRange},
		{"greater than", "45", "> 40 mg/dl", "HDL Cholesterol", VerdictInRange},
		{"at most", "1.2", "<= 1.2", "Creatinine", VerdictInRange},
		{"at least", "59", ">= 60", "eGFR", VerdictOutOfRange},
		{"zero to", "0", "0 - 5", "ESR", VerdictInRange},
		{"leading zeros", "03", "0-5 mm/hr", "ESR", VerdictInRange},
		{"zero width characters", "80", "70\u200B - 110\uFEFF", "Glucose", VerdictInRange},
		{"unit in value", "13.5 g/dL", "13 - 17 g/dl", "Hemoglobin", VerdictInRange},
		{"unrecognised text", "1", "Negative", "Urine Sugar", VerdictUndetermined},
		{"bare number range", "5", 5.0, "Odd", VerdictUndetermined},
		{"non numeric value", "Reactive", "< 1.0", "HIV", VerdictUndetermined},
		{"nil value", nil, "1 - 2", "X", VerdictUndetermined},
		{"missing range", "1", nil, "X", VerdictUndetermined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := models.TestResult{TestName: tt.test, Value: tt.value, ReferenceRange: tt.rng}
			assert.Equal(t, tt.expect, c.Classify(item), "Classify(%v, %v)", tt.value, tt.rng)
			assert.Equal(t, tt.expect == VerdictInRange, c.InRange(item))
		})
	}
}

func TestClassify_DashRangeProperty(t *testing.T) {
	c := NewClassifier(nil)
	ranges := [][2]float64{{0, 5}, {3.5, 5.5}, {70, 110}, {150, 450}}
	for _, r := range ranges {
		rng := fmt.Sprintf("%g - %g", r[0], r[1])
		for _, v := range []float64{r[0], (r[0] + r[1]) / 2, r[1]} {
			assert.True(t, c.InRange(models.TestResult{Value: v, ReferenceRange: rng}), "%g in %s", v, rng)
		}
		for _, v := range []float64{r[1] + 0.1, r[1] * 2} {
			assert.False(t, c.InRange(models.TestResult{Value: v, ReferenceRange: rng}), "%g in %s", v, rng)
		}
		if r[0] > 0 {
			assert.False(t, c.InRange(models.TestResult{Value: r[0] - 0.1, ReferenceRange: rng}))
		}
	}
}

func TestClassify_CholesterolOverride(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		name  string
		value any
		rng   string
		test  string
		want  bool
	}{
		{"below threshold", 199.0, "<200 mg/dl", "Total Cholesterol", true},
		{"above threshold", 205.0, "<200 mg/dl", "Total Cholesterol", false},
		{"at threshold is out", 200.0, "< 200 mg/dl", "Serum Cholesterol", false},
		{"override ignores trailing text", 150.0, "<200 (desirable) 200-239 (borderline)", "CHOLESTEROL, TOTAL", true},
		{"triglyceride below", "120", "< 150 mg/dL", "Triglycerides", true},
		{"triglyceride above", "160", "<150", "Triglycerides", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.InRange(models.TestResult{TestName: tt.test, Value: tt.value, ReferenceRange: tt.rng})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_HDLSkipsCholesterolOverride(t *testing.T) {
	c := NewClassifier(nil)
	// The generic rules cannot read this text, so an HDL result stays undetermined.
	item := models.TestResult{TestName: "HDL Cholesterol", Value: 150.0, ReferenceRange: "<200 (desirable) 200-239"}
	assert.Equal(t, VerdictUndetermined, c.Classify(item))
}

// The legacy "< N - M" shape discards N and treats M as an inclusive upper bound.
// This reads like a workaround for malformed historical data rather than a real rule;
// it is kept as-is and pinned here so any change is deliberate.
func TestClassify_LegacyLessThanRange_Suspect(t *testing.T) {
	c := NewClassifier(nil)
	assert.True(t, c.InRange(models.TestResult{Value: "15", ReferenceRange: "< 10 - 20"}))
	assert.True(t, c.InRange(models.TestResult{Value: "20", ReferenceRange: "<10-20"}))
	assert.False(t, c.InRange(models.TestResult{Value: "25", ReferenceRange: "< 10 - 20"}))
	assert.True(t, c.InRange(models.TestResult{Value: "2", ReferenceRange: "< 10 - 20"}))
}

func TestClassify_ObjectRanges(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		name   string
		test   string
		value  any
		rng    map[string]any
		expect Verdict
	}{
		{"reference range key", "Hemoglobin", "13", map[string]any{"Reference Range": "12 - 16 g/dl"}, VerdictInRange},
		{"normal key", "WBC", "12", map[string]any{"Normal": "4.5-11"}, VerdictOutOfRange},
		{"non reactive for hiv", "HIV I & II Antibody", "0.2", map[string]any{"Non Reactive": "< 1.0"}, VerdictInRange},
		{"non reactive for hbsag", "HBsAg", "1.5", map[string]any{"Non Reactive": "< 1.0", "Reactive": ">= 1.0"}, VerdictOutOfRange},
		{"non reactive for other test", "Glucose", "90", map[string]any{"Non Reactive": "< 1.0", "Normal": "70-110"}, VerdictUndetermined},
		{"unknown keys", "Glucose", "90", map[string]any{"Borderline": "110-125"}, VerdictUndetermined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(models.TestResult{TestName: tt.test, Value: tt.value, ReferenceRange: tt.rng})
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestResolveRangeSource(t *testing.T) {
	src, err := ResolveRangeSource("70 - 110", "")
	require.NoError(t, err)
	assert.Equal(t, RangeSource{Kind: RangePlain, Text: "70 - 110"}, src)

	src, err = ResolveRangeSource(map[string]any{"Normal": "1-2", "Reference Range": "3-4"}, "")
	require.NoError(t, err)
	assert.Equal(t, RangeSource{Kind: RangeNamed, Key: KeyReferenceRange, Text: "3-4"}, src)

	_, err = ResolveRangeSource(map[string]any{"Non Reactive": "<1"}, "Glucose")
	assert.ErrorIs(t, err, ErrMismatchedFormat)

	_, err = ResolveRangeSource(map[string]any{"Normal": ""}, "")
	assert.ErrorIs(t, err, ErrUnknownRangeFormat)

	_, err = ResolveRangeSource(nil, "")
	assert.ErrorIs(t, err, ErrUnknownRangeFormat)
}

func TestCleanRangeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"70 - 110 mg/dl", "70 - 110"},
		{"13-17 G/DL", "13-17"},
		{"< 5.7 %", "< 5.7"},
		{"150 - 450 cells/μL", "150 - 450"},
		{"0-20 mm/hr", "0-20"},
		{"  3.5   to  5.5  mmol/L ", "3.5 to 5.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanRangeString(tt.in), "CleanRangeString(%q)", tt.in)
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"03", 3, true},
		{"00", 0, true},
		{"0.5", 0.5, true},
		{"12.5 mg/dl", 12.5, true},
		{"-1.5", -1.5, true},
		{"1.2.3", 1.2, true},
		{"1,250", 1250, true},
		{42.0, 42, true},
		{7, 7, true},
		{"Non Reactive", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := CoerceValue(tt.in)
		assert.Equal(t, tt.ok, ok, "CoerceValue(%v) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "CoerceValue(%v)", tt.in)
		}
	}
}

func TestAnalyzeTestResults(t *testing.T) {
	c := NewClassifier(nil)
	extraction := map[string]any{
		"results": []any{
			map[string]any{"test_name": "Hemoglobin", "value": "13.5", "reference_range": "13 - 17 g/dL", "unit": "g/dL"},
			map[string]any{"test_name": "Total Cholesterol", "value": 240.0, "reference_range": "<200 mg/dl", "unit": "mg/dl"},
			map[string]any{"value": "8", "reference_range": "4 - 6"},
			map[string]any{"test_name": "HBsAg", "value": "Non Reactive", "reference_range": "Non Reactive"},
			map[string]any{"test_name": "Remarks"},
			map[string]any{"test_name": "Glucose", "value": 90.0, "reference_range": nil},
			"garbage",
		},
	}

	got := c.AnalyzeTestResults(extraction)

	assert.Equal(t, 4, got.TotalParams)
	assert.Equal(t, 1, got.SkippedParams)
	require.Len(t, got.OutOfRangeParams, 2)

	first := got.OutOfRangeParams[0]
	assert.Equal(t, "Total Cholesterol", first.Parameter)
	assert.Equal(t, 240.0, first.Value)
	assert.Equal(t, "mg/dl", first.Unit)
	assert.Equal(t, "<200 mg/dl", first.ReferenceRange)
	assert.Equal(t, "reference_range", first.RangeField)
	assert.Equal(t, models.OutOfRangeReason, first.Reason)

	assert.Equal(t, "Test 3", got.OutOfRangeParams[1].Parameter)
	assert.Equal(t, "", got.OutOfRangeParams[1].Unit)
}

func TestAnalyzeTestResults_NoResults(t *testing.T) {
	c := NewClassifier(nil)
	for _, extraction := range []map[string]any{nil, {}, {"results": "not a list"}} {
		got := c.AnalyzeTestResults(extraction)
		assert.Equal(t, 0, got.TotalParams)
		assert.NotNil(t, got.OutOfRangeParams)
		assert.Empty(t, got.OutOfRangeParams)
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "in_range", VerdictInRange.String())
	assert.Equal(t, "out_of_range", VerdictOutOfRange.String())
	assert.Equal(t, "undetermined", VerdictUndetermined.String())
}
