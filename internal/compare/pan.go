package compare

import (
	"regexp"
	"strings"

	"github.com/hyperjump/docverify/internal/models"
	"github.com/hyperjump/docverify/internal/similarity"
)

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// NormalizePAN removes all whitespace and uppercases.
func NormalizePAN(s string) string {
	return strings.ToUpper(whitespace.ReplaceAllString(s, ""))
}

// ComparePAN grades two PAN strings: exact 1.0; one contained in the other 0.9;
// similarity of at least 0.9 still matches with the similarity as confidence;
// similarity in [0.7, 0.9) does not match but keeps its similarity; lower is 0.
func ComparePAN(extracted, db string) models.PANComparison {
	ne := NormalizePAN(extracted)
	nd := NormalizePAN(db)
	out := models.PANComparison{
		FormatValid:         panPattern.MatchString(ne) && panPattern.MatchString(nd),
		NormalizedExtracted: ne,
		NormalizedDatabase:  nd,
	}
	if ne == "" || nd == "" {
		return out
	}

	if ne == nd {
		out.Match = true
		out.Confidence = 1.0
		out.ExactMatch = true
		out.Similarity = 1.0
		return out
	}

	out.Similarity = similarity.Similarity(ne, nd)
	if strings.Contains(ne, nd) || strings.Contains(nd, ne) {
		out.Match = true
		out.Confidence = 0.9
		out.PartialMatch = true
		return out
	}

	switch {
	case out.Similarity >= 0.9:
		out.Match = true
		out.Confidence = out.Similarity
	case out.Similarity >= 0.7:
		out.Confidence = out.Similarity
	}
	return out
}
