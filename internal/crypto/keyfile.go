// Package crypto provides the symmetric credential encryption and password
// hashing used by the store and the Web UI.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// EncryptedPrefix marks a ciphertext produced by Encrypt.
const EncryptedPrefix = "enc:v1:"

// ErrInvalidCiphertext is returned for anything that cannot be decrypted:
// wrong prefix, bad base64, truncated nonce, or a failed GCM tag check.
// Per spec, a corrupt ciphertext must resolve to "no key", never panic or
// propagate as a hard failure.
var ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

const keySize = 32 // AES-256

// KeyFile holds a symmetric key persisted beside the database file.
type KeyFile struct {
	key []byte
}

// MasterKeyPath returns the key file path for a given database path:
// <db_dir>/seekarr.masterkey.
func MasterKeyPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "seekarr.masterkey")
}

// OpenKeyFile loads the key at path, generating and persisting a fresh
// random key with 0600 permissions on first use.
func OpenKeyFile(path string) (*KeyFile, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if decodeErr == nil && len(key) == keySize {
			return &KeyFile{key: key}, nil
		}
		// Unreadable/corrupt key material: fall through and regenerate,
		// matching the "never fail to start over a bad key" policy.
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read master key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write master key: %w", err)
	}
	return &KeyFile{key: key}, nil
}

// Encrypt seals plaintext with AES-256-GCM under the file key.
func (k *KeyFile) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. A corrupt or foreign
// ciphertext returns ErrInvalidCiphertext rather than panicking; callers
// treat that as "no key", per spec.
func (k *KeyFile) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !strings.HasPrefix(ciphertext, EncryptedPrefix) {
		return "", ErrInvalidCiphertext
	}
	data, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(ciphertext, EncryptedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
