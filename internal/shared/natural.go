package shared

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var naturalIdent = regexp.MustCompile(`^([a-zA-Z]+)(\d*)$`)

// NaturalCompare orders identifiers alphabetically by letter prefix, then
// numerically by digit suffix, so that dev2 sorts before dev10. Identifiers
// outside the <letters><digits> shape compare as plain text with suffix 0.
// The order is total and deterministic for any pair of inputs.
func NaturalCompare(a, b string) int {
	prefixA, numA := splitNatural(a)
	prefixB, numB := splitNatural(b)

	if c := strings.Compare(prefixA, prefixB); c != 0 {
		return c
	}
	switch {
	case numA < numB:
		return -1
	case numA > numB:
		return 1
	default:
		return 0
	}
}

// SortNatural sorts identifiers in place using NaturalCompare. The sort is
// stable so equal identifiers keep their input order.
func SortNatural(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return NaturalCompare(ids[i], ids[j]) < 0
	})
}

func splitNatural(s string) (string, int64) {
	m := naturalIdent.FindStringSubmatch(s)
	if m == nil {
		return s, 0
	}
	if m[2] == "" {
		return m[1], 0
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		// Suffix longer than an int64; fall back to text order for the whole id.
		return s, 0
	}
	return m[1], n
}
