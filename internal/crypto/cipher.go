// Package crypto provides the encryption capability the engine depends on.
//
// Asset values and sensitive audit fields (unlock reasons, override notes)
// are encrypted at rest. The engine treats the cipher as an opaque
// capability: it only requires that Decrypt(Encrypt(x)) == x and that
// ciphertext is useless without the key. Losing the key permanently obscures
// historical reasons; that is an accepted tradeoff of the privacy-first
// design.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher is the contract the aggregation engine and audit recorder consume.
// Implementations must be cheap per call: aggregation decrypts every asset
// value inside its summation loop.
type Cipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

// AEADCipher implements Cipher with ChaCha20-Poly1305 and a random nonce per
// encryption. Output is base64(nonce || ciphertext), safe to store in text
// columns.
type AEADCipher struct {
	key []byte
}

// NewAEADCipher constructs a cipher over a 32-byte key.
func NewAEADCipher(key []byte) (*AEADCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	// Copy so callers can't mutate the key underneath us.
	k := make([]byte, len(key))
	copy(k, key)
	return &AEADCipher{key: k}, nil
}

// EncryptString encrypts plaintext and returns a base64 token.
func (c *AEADCipher) EncryptString(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. It fails on tampered or truncated
// input and on tokens produced under a different key.
func (c *AEADCipher) DecryptString(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}
