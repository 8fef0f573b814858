package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, VerifyPassword("correct horse battery staple", hash))
}

func TestHashPassword_WrongPasswordFails(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.False(t, VerifyPassword("wrong password", hash))
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	require.False(t, VerifyPassword("anything", "not-a-valid-hash"))
	require.False(t, VerifyPassword("anything", "pbkdf2_sha256$notanumber$salt$hash"))
}
