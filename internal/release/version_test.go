package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("6.1.2")
	require.NoError(t, err)
	assert.Equal(t, Version{6, 1, 2}, v)
	assert.Equal(t, "6.1.2", v.String())
}

func TestParseVersion_FourComponents(t *testing.T) {
	v, err := ParseVersion("6.0.7.1")
	require.NoError(t, err)
	assert.Equal(t, Version{6, 0, 7, 1}, v)
}

func TestParseVersion_LeadingV(t *testing.T) {
	v, err := ParseVersion("v7.3.10")
	require.NoError(t, err)
	assert.Equal(t, Version{7, 3, 10}, v)
	assert.Equal(t, "7.3.10", v.String())
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, s := range []string{"", "6.1.x", "6..2", "-1.0", "rc1"} {
		_, err := ParseVersion(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"6.1.2", "6.1.2", 0},
		{"6.1.1", "6.1.2", -1},
		{"6.2.0", "6.1.9", 1},
		{"7.0.0", "6.9.9", 1},
	}
	for _, tt := range tests {
		got := MustParseVersion(tt.a).Compare(MustParseVersion(tt.b))
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}
}

func TestCompare_MixedArityPadsWithZeros(t *testing.T) {
	// 6.1.2 == 6.1.2.0, and a fourth component orders after it.
	assert.Equal(t, 0, MustParseVersion("6.1.2").Compare(MustParseVersion("6.1.2.0")))
	assert.Equal(t, 1, MustParseVersion("6.0.7.1").Compare(MustParseVersion("6.0.7")))
	assert.Equal(t, -1, MustParseVersion("6.0.7").Compare(MustParseVersion("6.0.7.1")))
}

func TestAtMost_GateSemantics(t *testing.T) {
	gate := MustParseVersion("6.1.2")

	// At or below the gate: skipped.
	assert.True(t, MustParseVersion("6.1.2").AtMost(gate))
	assert.True(t, MustParseVersion("6.0.9").AtMost(gate))

	// Above the gate: runs.
	assert.False(t, MustParseVersion("6.1.3").AtMost(gate))
	assert.False(t, MustParseVersion("6.1.2.1").AtMost(gate))
	assert.False(t, MustParseVersion("7.0.0").AtMost(gate))
}
