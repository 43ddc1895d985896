package suppliers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Acme Corp":          "acme corp",
		"  ACME   Corp.  ":   "acme corp",
		"Acme Corp,":         "acme corp",
		"Ａｃｍｅ Corp":         "acme corp",
		"O'Reilly Media":     "o'reilly media",
		"...":                "",
		"Widgets (Pty) Ltd.": "widgets (pty) ltd",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

func TestMatchesNameIsCaseInsensitiveContainment(t *testing.T) {
	assert.True(t, matchesName("Acme Corp", "acme"))
	assert.True(t, matchesName("Acme Corp", "ACME CORP"))
	assert.True(t, matchesName("Big Acme Holdings", "Acme"))
	assert.False(t, matchesName("Acme", "Acme Corp"))
	assert.False(t, matchesName("Globex", "Acme"))
}
