package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(10)
	require.NoError(t, err)
	assert.Len(t, code, 10)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected character %q", r)
	}

	// Ambiguous characters are excluded from the alphabet.
	for _, banned := range "0O1IL" {
		assert.False(t, strings.ContainsRune(codeAlphabet, banned))
	}

	other, err := GenerateCode(10)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)

	empty, err := GenerateCode(0)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}
