package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyFile_EncryptDecryptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searchd.masterkey")
	kf, err := OpenKeyFile(path)
	require.NoError(t, err)

	enc, err := kf.Encrypt("super-secret-api-key")
	require.NoError(t, err)
	require.Contains(t, enc, EncryptedPrefix)

	plain, err := kf.Decrypt(enc)
	require.NoError(t, err)
	require.Equal(t, "super-secret-api-key", plain)
}

func TestKeyFile_CorruptCiphertext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searchd.masterkey")
	kf, err := OpenKeyFile(path)
	require.NoError(t, err)

	_, err = kf.Decrypt("not-encrypted-at-all")
	require.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = kf.Decrypt(EncryptedPrefix + "!!!not-base64!!!")
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestKeyFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searchd.masterkey")
	kf1, err := OpenKeyFile(path)
	require.NoError(t, err)
	enc, err := kf1.Encrypt("hello")
	require.NoError(t, err)

	kf2, err := OpenKeyFile(path)
	require.NoError(t, err)
	plain, err := kf2.Decrypt(enc)
	require.NoError(t, err)
	require.Equal(t, "hello", plain)
}
