package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpaqueToken(t *testing.T) {
	token, hash, err := NewOpaqueToken()
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, token, hash)
	assert.Equal(t, HashOpaqueToken(token), hash)
	assert.True(t, ValidOpaqueToken(token))
}

func TestNewOpaqueTokenIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		token, _, err := NewOpaqueToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestValidOpaqueToken(t *testing.T) {
	assert.False(t, ValidOpaqueToken(""))
	assert.False(t, ValidOpaqueToken("invalid-token"))
	assert.False(t, ValidOpaqueToken(strings.Repeat("z", 64)))
	assert.False(t, ValidOpaqueToken(strings.Repeat("a", 63)))
	assert.True(t, ValidOpaqueToken(strings.Repeat("a", 64)))
}
