// Package ranges classifies lab results against free-text reference ranges.
package ranges

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RangeKind tells how a reference range arrived.
type RangeKind int

const (
	// RangePlain is a bare range string.
	RangePlain RangeKind = iota
	// RangeNamed is one entry of an object keyed by range name.
	RangeNamed
)

// Keys recognised in object-shaped reference ranges, in priority order.
const (
	KeyNonReactive    = "Non Reactive"
	KeyReferenceRange = "Reference Range"
	KeyNormal         = "Normal"
)

var (
	// ErrMismatchedFormat is returned for a "Non Reactive" range on a non-infectious test.
	ErrMismatchedFormat = errors.New("infectious range format on non-infectious test")
	// ErrUnknownRangeFormat is returned when no usable range text can be found.
	ErrUnknownRangeFormat = errors.New("unknown reference range format")
)

// RangeSource is a reference range resolved to its text.
type RangeSource struct {
	Kind RangeKind
	Key  string
	Text string
}

// ResolveRangeSource turns a raw reference_range value into a RangeSource.
// Object ranges prefer "Non Reactive" (only for HIV/HBSAG tests), then "Reference Range",
// then "Normal".
func ResolveRangeSource(raw any, testName string) (RangeSource, error) {
	switch v := raw.(type) {
	case nil:
		return RangeSource{}, ErrUnknownRangeFormat
	case string:
		return RangeSource{Kind: RangePlain, Text: v}, nil
	case float64:
		return RangeSource{Kind: RangePlain, Text: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case map[string]any:
		if text, ok := rangeText(v[KeyNonReactive]); ok {
			upper := strings.ToUpper(testName)
			if strings.Contains(upper, "HIV") || strings.Contains(upper, "HBSAG") {
				return RangeSource{Kind: RangeNamed, Key: KeyNonReactive, Text: text}, nil
			}
			return RangeSource{}, ErrMismatchedFormat
		}
		for _, key := range []string{KeyReferenceRange, KeyNormal} {
			if text, ok := rangeText(v[key]); ok {
				return RangeSource{Kind: RangeNamed, Key: key, Text: text}, nil
			}
		}
		return RangeSource{}, ErrUnknownRangeFormat
	default:
		return RangeSource{Kind: RangePlain, Text: fmt.Sprint(v)}, nil
	}
}

// rangeText reports whether an object entry holds a usable (non-empty) value.
func rangeText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case bool:
		return "", false
	case float64:
		if t == 0 {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}
