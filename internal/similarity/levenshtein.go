// Package similarity provides edit-distance based string similarity used for fuzzy field matching.
package similarity

// EditDistance calculates the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string into another.
// The full matrix is always computed; there is no early cut-off.
func EditDistance(a, b string) int {
	if a == b {
		return 0
	}
	runesA := []rune(a)
	runesB := []rune(b)
	lenA := len(runesA)
	lenB := len(runesB)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Only two rows of the matrix are kept.
	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[lenB]
}

// Similarity returns (maxLen - EditDistance) / maxLen in [0, 1], where 1.0 means identical.
// Returns 0 when either string is empty.
func Similarity(a, b string) float64 {
	lenA := len([]rune(a))
	lenB := len([]rune(b))
	if lenA == 0 || lenB == 0 {
		return 0
	}
	longer := lenA
	if lenB > longer {
		longer = lenB
	}
	return float64(longer-EditDistance(a, b)) / float64(longer)
}

func min3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
