package ranges

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// unitSuffixes are stripped from range strings; longer spellings come before their prefixes.
var unitSuffixes = []string{
	"mg/dl", "mg/dL", "mg/100ml", "mg/100mL", "mg%",
	"g/dl", "g/dL", "g/100ml", "g/100mL", "g%",
	"mmol/L", "mmol/l", "mEq/L", "mEq/l",
	"IU/L", "IU/l", "U/L", "U/l",
	"pg/ml", "pg/mL", "ng/ml", "ng/mL", "ug/ml", "ug/mL",
	"cells/ul", "cells/μL", "cells/mcL",
	"%", "percent", "fl", "fL", "pg",
	"mm/hr", "mm/hour", "sec", "seconds",
	"years", "year", "yrs", "yr",
	"cm", "kg", "bpm", "mmHg",
}

var (
	unitPatterns  = compileUnits(unitSuffixes)
	zeroWidth     = regexp.MustCompile("[\u200B-\u200D\uFEFF]")
	multiSpace    = regexp.MustCompile(`\s+`)
	nonNumeric    = regexp.MustCompile(`[^\d.\-]`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

func compileUnits(units []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(units))
	for i, u := range units {
		out[i] = regexp.MustCompile(`(?i)\s*` + regexp.QuoteMeta(u) + `\s*`)
	}
	return out
}

// StripInvisible removes zero-width characters and byte order marks.
func StripInvisible(s string) string {
	return zeroWidth.ReplaceAllString(s, "")
}

// CleanRangeString removes known unit suffixes and collapses whitespace, leaving
// a bare numeric range expression.
func CleanRangeString(s string) string {
	cleaned := strings.TrimSpace(s)
	for _, re := range unitPatterns {
		cleaned = re.ReplaceAllString(cleaned, " ")
	}
	return strings.TrimSpace(multiSpace.ReplaceAllString(cleaned, " "))
}

// CoerceValue reads a measured value as a number. Everything except digits, '.' and '-'
// is dropped, redundant leading zeros are collapsed ("03" is 3, "0.5" stays), and the
// longest numeric prefix is parsed. ok is false for empty or non-finite input.
func CoerceValue(value any) (float64, bool) {
	var raw string
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		raw = v
	default:
		raw = fmt.Sprint(v)
	}

	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(raw), "")
	if len(cleaned) > 1 && strings.HasPrefix(cleaned, "0") && !strings.HasPrefix(cleaned, "0.") {
		cleaned = strings.TrimLeft(cleaned, "0")
		if cleaned == "" {
			cleaned = "0"
		}
	}

	prefix := leadingNumber.FindString(cleaned)
	if prefix == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
