// Package release resolves which QuestDB versions the harness tests
// against: version parsing and ordering, the public release catalog,
// and selector resolution into installable artifacts.
package release

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is an ordered tuple of non-negative integers, e.g. 6.1.2 or
// 6.0.7.1. Tuples of different arity are comparable: the shorter one
// is treated as having implicit trailing zeros, so 6.1.2 == 6.1.2.0
// and 6.0.7.1 > 6.0.7.
type Version []int

// ParseVersion parses a dotted version string. A leading "v" is
// accepted and ignored.
func ParseVersion(s string) (Version, error) {
	trimmed := strings.TrimPrefix(s, "v")
	if trimmed == "" {
		return nil, fmt.Errorf("empty version string")
	}
	parts := strings.Split(trimmed, ".")
	v := make(Version, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version %q: component %q is not a non-negative integer", s, part)
		}
		v[i] = n
	}
	return v, nil
}

// MustParseVersion is ParseVersion for literals; panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version in dotted form.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Compare returns -1, 0 or 1 as v orders before, equal to, or after
// other. Missing components compare as zero.
func (v Version) Compare(other Version) int {
	n := len(v)
	if len(other) > n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v) {
			a = v[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// AtMost reports whether v <= other. Scenario gates use this: a
// scenario gated on G is skipped when the fixture version is at or
// below G.
func (v Version) AtMost(other Version) bool {
	return v.Compare(other) <= 0
}
