package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// nonceCharset is the alphabet raw nonces are drawn from.
const nonceCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVXYZabcdefghijklmnopqrstuvwxyz-._"

// DefaultNonceLength is the raw nonce length used for Apple sign-in.
const DefaultNonceLength = 32

// Nonce is a single-use challenge bound to one Apple sign-in attempt.
// The hashed form goes into the provider request; the raw form is retained
// locally and presented exactly once during the credential exchange.
type Nonce struct {
	Raw    string
	Hashed string
}

// GenerateNonce produces a cryptographically random nonce of the given
// length. Each candidate byte is redrawn when it falls outside the charset
// to avoid modulo bias. Failure of the secure random source is the one
// unrecoverable error in the sign-in path; the attempt must be aborted.
func GenerateNonce(length int) (*Nonce, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: nonce length must be positive, got %d", apperrors.ErrValidation, length)
	}

	raw := make([]byte, 0, length)
	buf := make([]byte, 1)
	for len(raw) < length {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("secure random source unavailable: %w", err)
		}
		if int(buf[0]) < len(nonceCharset) {
			raw = append(raw, nonceCharset[buf[0]])
		}
	}

	sum := sha256.Sum256(raw)
	return &Nonce{
		Raw:    string(raw),
		Hashed: hex.EncodeToString(sum[:]),
	}, nil
}

// HashNonce returns the lowercase SHA-256 hex digest of a raw nonce.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
