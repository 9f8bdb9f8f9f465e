// Package cli renders verification reports for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/hyperjump/docverify/internal/models"
	"github.com/hyperjump/docverify/internal/stream"
	"github.com/hyperjump/docverify/pkg/utils"
)

// OutputFormat is the format for report output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	headColor = color.New(color.FgCyan, color.Bold)
)

const rule = "─────────────────────────────────────────────────────────"

// fieldOrder is the display order of compared fields.
var fieldOrder = map[string]int{"name": 0, "dob": 1, "pan": 2, "salary": 3}

// WriteFinanceReport writes a document comparison report.
func WriteFinanceReport(w io.Writer, report *models.FinanceReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}

	headColor.Fprintf(w, "\nDocument comparison (%s)\n", report.DocumentType)
	fmt.Fprintln(w, rule)
	keys := make([]string, 0, len(report.Comparison.Comparisons))
	for k := range report.Comparison.Comparisons {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return fieldOrder[keys[i]] < fieldOrder[keys[j]] })

	for _, k := range keys {
		c := report.Comparison.Comparisons[k]
		fmt.Fprintf(w, "%-7s %s  confidence %.2f  [%s]\n", k, verdict(c.Match), c.Confidence, c.Source)
		fmt.Fprintf(w, "        extracted: %v\n        database:  %v\n", display(c.Extracted), display(c.Database))
		if c.Details != nil {
			fmt.Fprintf(w, "        pan check: similarity %.2f, format valid %t\n", c.Details.Similarity, c.Details.FormatValid)
		}
		if c.DateCheck != nil {
			fmt.Fprintf(w, "        date check: match %t, confidence %.2f\n", c.DateCheck.Match, c.DateCheck.Confidence)
		}
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Overall score %.2f over %d fields (%d matched)\n",
		report.Comparison.OverallScore, report.Comparison.FieldsCompared, report.Comparison.Summary.Matches)
	if report.OverallMatch {
		okColor.Fprintln(w, report.Message)
	} else {
		failColor.Fprintln(w, report.Message)
	}
	return nil
}

// WritePANComparison writes a standalone PAN comparison.
func WritePANComparison(w io.Writer, cmp models.PANComparison, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, cmp)
	}
	fmt.Fprintf(w, "%s %s vs %s\n", verdict(cmp.Match), cmp.NormalizedExtracted, cmp.NormalizedDatabase)
	fmt.Fprintf(w, "confidence %.2f, similarity %.2f, exact %t, partial %t, format valid %t\n",
		cmp.Confidence, cmp.Similarity, cmp.ExactMatch, cmp.PartialMatch, cmp.FormatValid)
	return nil
}

// WriteMedicalReport writes identity verification and out-of-range findings.
func WriteMedicalReport(w io.Writer, report *models.MedicalReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}

	headColor.Fprintln(w, "\nLab report analysis")
	fmt.Fprintln(w, rule)
	if report.StreamStatus == string(stream.StatusPartial) {
		warnColor.Fprintf(w, "Partial extraction: only %d pages received\n", report.TotalPages)
	}

	if iv := report.IdentityVerification; iv != nil {
		fmt.Fprintf(w, "Identity  name %s  age %s  sex %s  confidence %d%%\n",
			check(iv.NameMatch), check(iv.AgeMatch), check(iv.SexMatch), iv.Confidence)
		for _, issue := range iv.Issues {
			warnColor.Fprintf(w, "  - %s\n", issue)
		}
	} else {
		fmt.Fprintln(w, "Identity  not checked")
	}

	ra := report.RangeAnalysis
	fmt.Fprintf(w, "Parameters %d, out of range %d, skipped %d\n", ra.TotalParams, len(ra.OutOfRangeParams), ra.SkippedParams)
	for _, f := range ra.OutOfRangeParams {
		failColor.Fprintf(w, "  ! %s", f.Parameter)
		fmt.Fprintf(w, " = %v %s (range %s: %s)\n", display(f.Value), f.Unit, f.RangeField, utils.Truncate(fmt.Sprint(display(f.ReferenceRange)), 60))
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, report.Message)
	return nil
}

// WriteStreamResult writes a reassembled document; text output is a summary followed by the document.
func WriteStreamResult(w io.Writer, res *stream.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res.Document)
	}
	status := okColor.Sprint(res.Status)
	if res.Status == stream.StatusPartial {
		status = warnColor.Sprint(res.Status)
	}
	fmt.Fprintf(w, "Stream %s: %d pages, %d skipped, %d bytes in %s\n", status, res.Pages, res.Skipped, res.BytesReceived, res.Duration)
	return writeJSON(w, res.Document)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func verdict(match bool) string {
	if match {
		return okColor.Sprint("MATCH")
	}
	return failColor.Sprint("MISMATCH")
}

func check(b *bool) string {
	switch {
	case b == nil:
		return warnColor.Sprint("n/a")
	case *b:
		return okColor.Sprint("ok")
	default:
		return failColor.Sprint("no")
	}
}

func display(v interface{}) interface{} {
	if v == nil {
		return "-"
	}
	return v
}
