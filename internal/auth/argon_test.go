package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheapParams keeps the tests fast.
var cheapParams = PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPasswordWithParams("correct horse battery", cheapParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := VerifyPassword(hash, "correct horse battery")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	a, err := HashPasswordWithParams("same", cheapParams)
	require.NoError(t, err)
	b, err := HashPasswordWithParams("same", cheapParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)

	_, err = HashPassword(strings.Repeat("x", maxPasswordLength+1))
	assert.Error(t, err)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, hash := range []string{"", "plain", "$bcrypt$v=1$m=1,t=1,p=1$a$b", "$argon2id$v=19$garbage$a$b"} {
		ok, err := VerifyPassword(hash, "password")
		assert.NoError(t, err)
		assert.False(t, ok, hash)
	}
}

func TestNeedsRehash(t *testing.T) {
	hash, err := HashPasswordWithParams("password", cheapParams)
	require.NoError(t, err)

	assert.False(t, NeedsRehash(hash, cheapParams))
	assert.True(t, NeedsRehash(hash, DefaultPasswordParams))
	assert.True(t, NeedsRehash("not a hash", cheapParams))
}
