package usecase

import "strings"

// PartialRatio returns a 0-100 similarity between a and b that tolerates one
// string being a substring, or near substring, of the other. Comparison is
// case-insensitive. The shorter string is aligned against every window of
// the longer one with the same length, plus the partial windows hanging off
// either end, and the best alignment wins. Either side empty scores 0.
func PartialRatio(a, b string) float64 {
	s := []rune(strings.ToLower(a))
	l := []rune(strings.ToLower(b))
	if len(s) == 0 || len(l) == 0 {
		return 0
	}
	if len(s) > len(l) {
		s, l = l, s
	}

	best := partialRatio(s, l)
	if len(s) == len(l) && best < 100 {
		best = max(best, partialRatio(l, s))
	}
	return best
}

// partialRatio assumes len(short) <= len(long) and both are non-empty
func partialRatio(short, long []rune) float64 {
	n, m := len(short), len(long)
	best := 0.0

	try := func(window []rune) bool {
		if r := indelRatio(short, window); r > best {
			best = r
		}
		return best >= 100
	}

	for i := 1; i < n; i++ {
		if try(long[:i]) {
			return best
		}
	}
	for i := 0; i <= m-n; i++ {
		if try(long[i : i+n]) {
			return best
		}
	}
	for i := m - n + 1; i < m; i++ {
		if try(long[i:]) {
			return best
		}
	}
	return best
}

// indelRatio is the normalized insertion/deletion similarity, 0-100
func indelRatio(s1, s2 []rune) float64 {
	total := len(s1) + len(s2)
	if total == 0 {
		return 100
	}
	dist := indelDistance(s1, s2)
	return 100 * (1 - float64(dist)/float64(total))
}

// indelDistance counts the insertions and deletions needed to turn s1 into
// s2. It is the edit distance with substitutions disallowed, which equals
// len(s1)+len(s2)-2*LCS(s1, s2).
func indelDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	m := len(s1)
	n := len(s2)

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			if s1[i-1] == s2[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = min(
				prev[j]+1,   // deletion
				curr[j-1]+1, // insertion
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
