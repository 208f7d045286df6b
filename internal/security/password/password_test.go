package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsDeterministicPerSalt(t *testing.T) {
	h1 := Hash("correct horse", "abc")
	h2 := Hash("correct horse", "abc")
	h3 := Hash("correct horse", "abd")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, KeyLength*2)
}

func TestVerify(t *testing.T) {
	hash, salt, err := HashNew("Password123")
	require.NoError(t, err)

	assert.True(t, Verify("Password123", salt, hash))
	assert.False(t, Verify("password123", salt, hash))
	assert.False(t, Verify("Password123", salt+"0", hash))
	assert.False(t, Verify("Password123", salt, ""))
}

func TestNewSaltIsRandom(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	b, err := NewSalt()
	require.NoError(t, err)

	assert.Len(t, a, SaltLength*2)
	assert.NotEqual(t, a, b)
}
