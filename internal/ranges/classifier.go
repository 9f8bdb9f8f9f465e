package ranges

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/docverify/internal/models"
	"go.uber.org/zap"
)

// Verdict is the outcome of classifying one result.
type Verdict int

const (
	// VerdictUndetermined means the value or the range could not be interpreted.
	VerdictUndetermined Verdict = iota
	VerdictInRange
	VerdictOutOfRange
)

func (v Verdict) String() string {
	switch v {
	case VerdictInRange:
		return "in_range"
	case VerdictOutOfRange:
		return "out_of_range"
	default:
		return "undetermined"
	}
}

func verdictOf(inRange bool) Verdict {
	if inRange {
		return VerdictInRange
	}
	return VerdictOutOfRange
}

const number = `(\d+(?:\.\d+)?)`

// rangeRule is one recognised range shape; first match wins.
type rangeRule struct {
	name  string
	re    *regexp.Regexp
	check func(value float64, bounds []float64) bool
}

func between(v float64, b []float64) bool { return v >= b[0] && v <= b[1] }

var rangeRules = []rangeRule{
	{"dash", regexp.MustCompile(`^` + number + `\s*-\s*` + number + `$`), between},
	{"spaced dash", regexp.MustCompile(`^` + number + `\s+-\s+` + number + `$`), between},
	{"to", regexp.MustCompile(`(?i)^` + number + `\s+to\s+` + number + `$`), between},
	{"less than", regexp.MustCompile(`^<\s*` + number + `$`), func(v float64, b []float64) bool { return v < b[0] }},
	{"greater than", regexp.MustCompile(`^>\s*` + number + `$`), func(v float64, b []float64) bool { return v > b[0] }},
	{"at most", regexp.MustCompile(`^<=\s*` + number + `$`), func(v float64, b []float64) bool { return v <= b[0] }},
	{"at least", regexp.MustCompile(`^>=\s*` + number + `$`), func(v float64, b []float64) bool { return v >= b[0] }},
	{"zero to", regexp.MustCompile(`^0\s*-\s*` + number + `$`), func(v float64, b []float64) bool { return v >= 0 && v <= b[0] }},
	// Legacy malformed "< N - M": only M is used, as an inclusive upper bound.
	{"legacy less than range", regexp.MustCompile(`^<\s*` + number + `\s*-\s*` + number + `$`), func(v float64, b []float64) bool { return v <= b[1] }},
}

// upperBoundOverride classifies well-known lipid tests by a strict upper bound whenever
// the uncleaned range text carries that bound.
type upperBoundOverride struct {
	test    string
	exclude string
	limit   float64
	markers []string
}

var overrides = []upperBoundOverride{
	{test: "CHOLESTEROL", exclude: "HDL", limit: 200, markers: []string{"<200", "< 200"}},
	{test: "TRIGLYCERIDE", limit: 150, markers: []string{"<150", "< 150"}},
}

// Classifier decides whether lab values fall inside their reference ranges.
// It is stateless and safe for concurrent use.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a classifier; logger may be nil.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger}
}

// InRange reports whether the result is inside its normal range. It is false for
// out-of-range results and for anything that cannot be interpreted.
func (c *Classifier) InRange(item models.TestResult) bool {
	return c.Classify(item) == VerdictInRange
}

// Classify parses the value and range of item and compares them.
// It never panics; failures are logged and yield VerdictUndetermined.
func (c *Classifier) Classify(item models.TestResult) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("range check failed",
				zap.String("test_name", item.TestName),
				zap.Any("value", item.Value),
				zap.Any("reference_range", item.ReferenceRange),
				zap.Any("panic", r),
			)
			verdict = VerdictUndetermined
		}
	}()

	value, ok := CoerceValue(item.Value)
	if !ok {
		c.logger.Warn("invalid numeric value", zap.String("test_name", item.TestName), zap.Any("value", item.Value))
		return VerdictUndetermined
	}

	source, err := ResolveRangeSource(item.ReferenceRange, item.TestName)
	if err != nil {
		c.logger.Warn("unusable reference range",
			zap.String("test_name", item.TestName),
			zap.Any("reference_range", item.ReferenceRange),
			zap.Error(err),
		)
		return VerdictUndetermined
	}

	original := StripInvisible(source.Text)
	cleaned := CleanRangeString(original)
	c.logger.Debug("range string cleaned",
		zap.String("test_name", item.TestName),
		zap.String("original", original),
		zap.String("cleaned", cleaned),
	)

	if inRange, ok := c.applyOverride(item.TestName, original, value); ok {
		return verdictOf(inRange)
	}

	for _, rule := range rangeRules {
		m := rule.re.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}
		bounds := make([]float64, 0, len(m)-1)
		for _, g := range m[1:] {
			f, err := strconv.ParseFloat(g, 64)
			if err != nil {
				return VerdictUndetermined
			}
			bounds = append(bounds, f)
		}
		return verdictOf(rule.check(value, bounds))
	}

	c.logger.Warn("no range pattern matched",
		zap.String("test_name", item.TestName),
		zap.String("range", cleaned),
		zap.String("original", original),
	)
	return VerdictUndetermined
}

func (c *Classifier) applyOverride(testName, original string, value float64) (bool, bool) {
	upper := strings.ToUpper(testName)
	for _, o := range overrides {
		if !strings.Contains(upper, o.test) {
			continue
		}
		if o.exclude != "" && strings.Contains(upper, o.exclude) {
			// HDL cholesterol has a lower bound; it goes through the generic rules.
			continue
		}
		for _, marker := range o.markers {
			if strings.Contains(original, marker) {
				inRange := value < o.limit
				c.logger.Debug("upper bound override applied",
					zap.String("test", o.test),
					zap.Float64("value", value),
					zap.Float64("limit", o.limit),
					zap.Bool("in_range", inRange),
				)
				return inRange, true
			}
		}
		return false, false
	}
	return false, false
}

// AnalyzeTestResults classifies every item of extraction["results"] that carries both a
// value and a reference range. Only definite out-of-range results become findings;
// results that cannot be interpreted are counted as skipped.
func (c *Classifier) AnalyzeTestResults(extraction map[string]any) models.RangeAnalysis {
	analysis := models.RangeAnalysis{OutOfRangeParams: []models.RangeFinding{}}
	results, _ := extraction["results"].([]any)

	for i, raw := range results {
		item, ok := models.TestResultFromMap(raw)
		if !ok || item.Value == nil || !hasRange(item.ReferenceRange) {
			continue
		}
		analysis.TotalParams++

		switch c.Classify(item) {
		case VerdictOutOfRange:
			name := item.TestName
			if name == "" {
				name = fmt.Sprintf("Test %d", i+1)
			}
			analysis.OutOfRangeParams = append(analysis.OutOfRangeParams, models.RangeFinding{
				Parameter:      name,
				Value:          item.Value,
				Unit:           item.Unit,
				ReferenceRange: item.ReferenceRange,
				RangeField:     "reference_range",
				Reason:         models.OutOfRangeReason,
			})
		case VerdictUndetermined:
			analysis.SkippedParams++
		}
	}

	c.logger.Debug("range analysis completed",
		zap.Bool("has_results", results != nil),
		zap.Int("total_params", analysis.TotalParams),
		zap.Int("out_of_range", len(analysis.OutOfRangeParams)),
		zap.Int("skipped", analysis.SkippedParams),
	)
	return analysis
}

func hasRange(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case map[string]any:
		return true
	default:
		return true
	}
}
