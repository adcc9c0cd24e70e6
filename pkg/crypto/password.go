// Package crypto hashes password field values.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMalformedHash is returned when a stored value is not an encoded argon2id hash.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrIncompatibleVersion is returned for hashes of another argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

const (
	hashPrefix = "$argon2id$"
	saltLength = 16
	keyLength  = 32
)

// HasherConfig holds the argon2id cost parameters.
type HasherConfig struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	// MinStrength is the lowest Strength score a new password may have.
	MinStrength int
}

// DefaultHasherConfig follows the OWASP recommendation for argon2id.
var DefaultHasherConfig = HasherConfig{Time: 1, Memory: 64 * 1024, Threads: 4, MinStrength: 3}

// PasswordHasher produces and verifies PHC-encoded argon2id hashes:
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
type PasswordHasher struct {
	cfg HasherConfig
}

// NewPasswordHasher returns a hasher; zero cost parameters take the defaults.
func NewPasswordHasher(cfg HasherConfig) *PasswordHasher {
	if cfg.Time == 0 {
		cfg.Time = DefaultHasherConfig.Time
	}
	if cfg.Memory == 0 {
		cfg.Memory = DefaultHasherConfig.Memory
	}
	if cfg.Threads == 0 {
		cfg.Threads = DefaultHasherConfig.Threads
	}
	return &PasswordHasher{cfg: cfg}
}

// Hash returns the encoded hash of password with a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Threads, keyLength)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		hashPrefix, argon2.Version, h.cfg.Memory, h.cfg.Time, h.cfg.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. The parameters stored in
// the hash are used, so hashes survive cost changes.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrMalformedHash
	}
	if version != argon2.Version {
		return false, ErrIncompatibleVersion
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrMalformedHash
	}

	candidate := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// StrongEnough reports whether password reaches the configured minimum strength.
func (h *PasswordHasher) StrongEnough(password string) bool {
	return Strength(password) >= h.cfg.MinStrength
}

// IsHash reports whether s looks like a value produced by Hash.
func IsHash(s string) bool {
	return strings.HasPrefix(s, hashPrefix)
}

// Strength scores a password from 0 to 4: one point each for reaching 8 and 12
// characters, one for using three character classes and one for using all four.
func Strength(password string) int {
	n := len([]rune(password))
	if n == 0 {
		return 0
	}

	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	classes := 0
	for _, used := range []bool{lower, upper, digit, other} {
		if used {
			classes++
		}
	}

	score := 0
	if n >= 8 {
		score++
	}
	if n >= 12 {
		score++
	}
	if classes >= 3 {
		score++
	}
	if classes == 4 {
		score++
	}
	return score
}
