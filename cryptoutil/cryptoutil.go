// Package cryptoutil encrypts and decrypts individual message fields with
// AES-256-GCM. Ciphertext is base64(nonce || tag || ciphertext), so
// decryption is self-contained given only the key.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16

	// minCiphertextLen is nonce plus tag; anything shorter cannot be a
	// valid ciphertext and passes through untouched.
	minCiphertextLen = nonceSize + tagSize
)

// A Cipher performs authenticated field encryption. It is stateless and safe
// for concurrent use. The key is process-wide configuration; it is never
// logged and never leaves this package.
type Cipher struct {
	aead cipher.AEAD
	log  *slog.Logger
}

// New builds a Cipher from a hex-encoded 32-byte key.
func New(hexKey string, log *slog.Logger) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cipher{aead: aead, log: log}, nil
}

// Encrypt seals value under a fresh random nonce. Callers must not pass an
// empty value; emptiness is rejected at the send boundary.
func (c *Cipher) Encrypt(value string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(value), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens value. It fails soft: malformed, undersized or tampered
// input comes back unchanged with a warning logged, so a bad field never
// blocks rendering a message list.
func (c *Cipher) Decrypt(value string) string {
	if value == "" {
		return ""
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(data) < minCiphertextLen {
		c.log.Warn("Could not decrypt field: not a ciphertext")
		return value
	}
	nonce := data[:nonceSize]
	tag := data[nonceSize:minCiphertextLen]
	ciphertext := data[minCiphertextLen:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		c.log.Warn("Could not decrypt field", "error", err.Error())
		return value
	}
	return string(plain)
}
