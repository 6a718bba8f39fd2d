package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Stored values carry a one-byte prefix so plaintext rows written before a key
// was configured stay readable.
const (
	formatPlain byte = 0x00
	formatGCMv1 byte = 0x01
)

var (
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	ErrKeyNotConfigured   = errors.New("crypto: value is encrypted but no key is configured")
	ErrUnknownFormat      = errors.New("crypto: unknown value format")
)

// Cipher seals banking fields at rest with AES-256-GCM.
type Cipher struct {
	aead cipher.AEAD
}

func New(key string) (*Cipher, error) {
	if key == "" {
		return &Cipher{}, nil
	}
	decoded, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be 32 bytes after decoding")
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Configured() bool {
	return c != nil && c.aead != nil
}

func (c *Cipher) SealString(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	if !c.Configured() {
		return append([]byte{formatPlain}, value...), nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(nonce)+len(value)+c.aead.Overhead())
	out = append(out, formatGCMv1)
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, []byte(value), nil), nil
}

func (c *Cipher) OpenString(stored []byte) (string, error) {
	if len(stored) == 0 {
		return "", nil
	}
	switch stored[0] {
	case formatPlain:
		return string(stored[1:]), nil
	case formatGCMv1:
		if !c.Configured() {
			return "", ErrKeyNotConfigured
		}
		body := stored[1:]
		if len(body) < c.aead.NonceSize() {
			return "", ErrCiphertextTooShort
		}
		nonce, data := body[:c.aead.NonceSize()], body[c.aead.NonceSize():]
		plain, err := c.aead.Open(nil, nonce, data, nil)
		if err != nil {
			return "", err
		}
		return string(plain), nil
	default:
		return "", ErrUnknownFormat
	}
}

// Mask keeps the last four characters of an account number.
func Mask(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == 64 {
		decoded, err := hex.DecodeString(raw)
		if err == nil {
			return decoded, nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	return []byte(raw), nil
}
