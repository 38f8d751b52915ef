// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // output length in bytes
)

// Salt derivation configuration.
const (
	// SaltRandomBytes is the amount of random material mixed into a salt.
	SaltRandomBytes = 16

	// SaltFallbackBytes is the reduced amount used for the single retry when
	// the encoded salt exceeds MaxSaltLength.
	SaltFallbackBytes = 8

	// MaxSaltLength is the longest encoded salt the hash format accepts
	// (the PHC SaltString limit).
	MaxSaltLength = 64
)

// Salt is an opaque, base64-encoded per-account salt. It is generated once
// at registration and stored alongside the password hash.
type Salt string

// Hasher provides the stateless credential primitives: deterministic
// username fingerprinting, randomized salt derivation, and memory-hard
// password hashing.
type Hasher struct {
	logger *slog.Logger
}

// NewHasher creates a Hasher. A nil logger falls back to slog.Default.
func NewHasher(logger *slog.Logger) *Hasher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hasher{logger: logger}
}

// Fingerprint computes the deterministic lookup digest for a username:
// SHA-256 over the raw bytes, uppercase hex. It carries no salt and offers
// no confidentiality on its own; it must never be treated as a secret.
func (h *Hasher) Fingerprint(username string) string {
	sum := sha256.Sum256([]byte(username))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// DeriveSalt combines the username, password, and SaltRandomBytes of random
// material into an opaque salt. If the encoded value exceeds MaxSaltLength
// it retries once with SaltFallbackBytes of random material before giving
// up. The retry keeps registration from failing on the encoding edge case;
// it is logged even when it succeeds.
//
// A new salt is produced on every call, even for identical inputs.
func (h *Hasher) DeriveSalt(username, password string) (Salt, error) {
	salt, err := encodeSalt(username, password, SaltRandomBytes)
	if err == nil {
		return salt, nil
	}

	h.logger.Warn("salt encoding exceeded length limit, retrying with reduced random material",
		"limit", MaxSaltLength,
		"retry_bytes", SaltFallbackBytes)

	salt, retryErr := encodeSalt(username, password, SaltFallbackBytes)
	if retryErr != nil {
		return "", oops.Code("AUTH_SALT_FAILED").
			With("operation", "derive salt").
			Wrap(retryErr)
	}
	return salt, nil
}

// encodeSalt draws n random bytes and encodes username+password+randomness
// into the bounded salt representation.
func encodeSalt(username, password string, n int) (Salt, error) {
	random := make([]byte, n)
	if _, err := rand.Read(random); err != nil {
		return "", oops.Code("AUTH_RANDOM_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", n).
			Wrap(err)
	}

	material := username + password + hex.EncodeToString(random)
	encoded := base64.RawStdEncoding.EncodeToString([]byte(material))
	if len(encoded) > MaxSaltLength {
		return "", oops.Code("AUTH_SALT_TOO_LONG").
			With("encoded_length", len(encoded)).
			With("limit", MaxSaltLength).
			Errorf("encoded salt exceeds %d characters", MaxSaltLength)
	}
	return Salt(encoded), nil
}

// HashPassword runs argon2id over the password using the supplied salt and
// returns the hash in PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
//
// It is deterministic given (password, salt) and fails only when the salt
// is malformed, which must never happen for salts produced by DeriveSalt.
func (h *Hasher) HashPassword(password string, salt Salt) (string, error) {
	if salt == "" {
		return "", oops.Code("AUTH_INVALID_SALT").Errorf("salt cannot be empty")
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(string(salt))
	if err != nil {
		return "", oops.Code("AUTH_INVALID_SALT").
			With("operation", "decode salt").
			Wrap(err)
	}

	key := argon2.IDKey([]byte(password), saltBytes, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		salt,
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}
