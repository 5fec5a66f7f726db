// Package accesscode implements the shared primitives of the access-code
// login flow: canonicalization and hashing of access phrases, birthdate
// normalization for the second factor, constant-time digest comparison and
// the table of known credentials the server verifies against.
//
// Digests are the first 32 hex characters of SHA-256 over the lowercased,
// trimmed input. Reference digests are stored outside this module, so the
// truncation must not change.
package accesscode

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DigestLength is the number of hex characters in every digest.
const DigestLength = 32

// ErrFallbackNotAllowed is returned when the non-cryptographic hasher is
// requested outside test mode.
var ErrFallbackNotAllowed = errors.New("fallback hasher is only available in test mode")

// Hasher maps a credential string to a comparison digest.
type Hasher interface {
	Hash(input string) string
}

// Canonical lowercases and trims s. Phrases and digest inputs are always
// compared in this form.
func Canonical(s string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}

// Hash returns the SHA-256 digest of the canonical form of input, truncated
// to DigestLength hex characters.
func Hash(input string) string {
	return SHA256Hasher{}.Hash(input)
}

// SHA256Hasher is the production Hasher.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(input string) string {
	sum := sha256.Sum256([]byte(Canonical(input)))
	return hex.EncodeToString(sum[:])[:DigestLength]
}

// RollingHasher is a 32-bit rolling hash padded to DigestLength characters.
// It is not collision resistant and never produces digests that match the
// reference table; it exists so tests can exercise the flow without the
// primary digest.
type RollingHasher struct{}

func (RollingHasher) Hash(input string) string {
	var h int32
	for _, r := range Canonical(input) {
		h = h*31 + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	s := fmt.Sprintf("%08x", v)
	return s + strings.Repeat("0", DigestLength-len(s))
}

// NewHasher returns the SHA-256 hasher, or the rolling fallback when
// fallback is set. The fallback is refused unless testMode is true.
func NewHasher(fallback, testMode bool) (Hasher, error) {
	if !fallback {
		return SHA256Hasher{}, nil
	}
	if !testMode {
		return nil, ErrFallbackNotAllowed
	}
	return RollingHasher{}, nil
}

// ValidDigest reports whether s has the shape of a digest: exactly
// DigestLength lowercase hex characters.
func ValidDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
