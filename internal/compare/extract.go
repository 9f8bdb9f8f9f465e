package compare

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/docverify/internal/models"
)

// ExtractFields picks the section of a finance extraction named after the document type
// (lowercased) and reads name, salary, dob, and pan_number from it. Missing or empty values
// stay nil.
func ExtractFields(extraction map[string]any, documentType string) models.ExtractedFields {
	section, _ := extraction[strings.ToLower(strings.TrimSpace(documentType))].(map[string]any)
	if section == nil {
		return models.ExtractedFields{}
	}
	return models.ExtractedFields{
		Name:   stringField(section["name"]),
		DOB:    stringField(section["dob"]),
		PAN:    stringField(section["pan_number"]),
		Salary: numberField(section["salary"]),
	}
}

func stringField(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// numberField accepts JSON numbers and numeric strings such as "45,000.50".
// Zero is treated as absent.
func numberField(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f == 0 {
		return nil
	}
	return &f
}
