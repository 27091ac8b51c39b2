package random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringUsesAlphabet(t *testing.T) {
	const alphabet = "abc123"
	s := New().String(64, alphabet)

	assert.Len(t, s, 64)
	for _, c := range s {
		assert.True(t, strings.ContainsRune(alphabet, c), "unexpected %q", c)
	}
}

func TestStringEdgeCases(t *testing.T) {
	r := New()

	assert.Empty(t, r.String(0, "abc"))
	assert.Empty(t, r.String(5, ""))
	assert.Equal(t, "zzzz", r.String(4, "z"))
}

func TestStringVaries(t *testing.T) {
	r := New()
	assert.NotEqual(t, r.String(16, "abcdefghijklmnopqrstuvwxyz"), r.String(16, "abcdefghijklmnopqrstuvwxyz"))
}
