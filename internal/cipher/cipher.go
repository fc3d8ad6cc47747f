// Package cipher encrypts chat and usage content at rest with AES-256-GCM.
//
// Wire format: 12-byte nonce ‖ ciphertext ‖ GCM tag, stored in BYTEA columns
// alongside an encryption version so the key can be rotated later.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// Version is the current encryption scheme version stored with each row.
	Version = 1

	nonceSize = 12
	keySize   = 32
)

var (
	// ErrInvalidKey indicates the key is not a base64-encoded 32-byte value.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrDecryptFailed indicates the ciphertext is corrupted or was sealed
	// with a different key.
	ErrDecryptFailed = errors.New("decryption failed")
)

// Box seals and opens content with a single AES-256-GCM key.
// Safe for concurrent use.
type Box struct {
	aead stdcipher.AEAD
}

// New creates a Box from a base64-encoded 32-byte key.
func New(base64Key string) (*Box, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64: %w", ErrInvalidKey, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: decoded length %d, want %d", ErrInvalidKey, len(key), keySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce ‖ ciphertext ‖ tag.
func (b *Box) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealed, nil
}

// Open decrypts data produced by Seal.
func (b *Box) Open(data []byte) (string, error) {
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: data too short", ErrDecryptFailed)
	}

	plaintext, err := b.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	return string(plaintext), nil
}
