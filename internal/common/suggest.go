package common

import "strings"

// EditDistance is the Levenshtein distance between a and b, counted in bytes.
func EditDistance(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}

	row := make([]int, len(a)+1)
	for i := range row {
		row[i] = i
	}

	for j := 1; j <= len(b); j++ {
		diag := row[0]
		row[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			next := min(row[i]+1, row[i-1]+1, diag+cost)
			diag, row[i] = row[i], next
		}
	}

	return row[len(a)]
}

// Closest returns the candidate nearest to name, ignoring case. Candidates
// further away than a third of the longer string are not offered.
func Closest(name string, candidates []string) (string, bool) {
	best, bestDist := "", -1
	lower := strings.ToLower(name)

	for _, c := range candidates {
		d := EditDistance(lower, strings.ToLower(c))
		if d*3 > max(len(name), len(c)) {
			continue
		}

		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}

	return best, bestDist >= 0
}
