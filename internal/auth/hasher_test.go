// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package auth

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almclabs/doorman/pkg/errutil"
)

func TestFingerprint_KnownVectors(t *testing.T) {
	hasher := NewHasher(nil)

	tests := []struct {
		username string
		want     string
	}{
		{
			username: "",
			want:     "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855",
		},
		{
			username: "abc",
			want:     "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, hasher.Fingerprint(tt.username))
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	hasher := NewHasher(nil)

	first := hasher.Fingerprint("alice")
	second := hasher.Fingerprint("alice")
	assert.Equal(t, first, second)

	assert.Len(t, first, 64)
	assert.Equal(t, strings.ToUpper(first), first, "fingerprint must be uppercase hex")
}

func TestFingerprint_DistinctUsernames(t *testing.T) {
	hasher := NewHasher(nil)
	assert.NotEqual(t, hasher.Fingerprint("alice"), hasher.Fingerprint("bob"))
}

func TestDeriveSalt_UniquePerCall(t *testing.T) {
	hasher := NewHasher(nil)

	first, err := hasher.DeriveSalt("user", "Pass1!")
	require.NoError(t, err)
	second, err := hasher.DeriveSalt("user", "Pass1!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salts must differ across calls even for identical inputs")
	assert.LessOrEqual(t, len(first), MaxSaltLength)
}

func TestDeriveSalt_EmbedsCredentialMaterial(t *testing.T) {
	hasher := NewHasher(nil)

	salt, err := hasher.DeriveSalt("user", "Pw1!")
	require.NoError(t, err)

	decoded, err := base64.RawStdEncoding.DecodeString(string(salt))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(decoded), "user"+"Pw1!"))
}

func TestDeriveSalt_FallsBackOnLongCredentials(t *testing.T) {
	hasher := NewHasher(nil)

	// 19 bytes of credential material overflows the limit with the full
	// random width but fits with the fallback width.
	salt, err := hasher.DeriveSalt("someuser", "Passw0rd!x1")
	require.NoError(t, err)
	assert.NotEmpty(t, salt)
	assert.LessOrEqual(t, len(salt), MaxSaltLength)
}

func TestDeriveSalt_FailsWhenFallbackOverflows(t *testing.T) {
	hasher := NewHasher(nil)

	// 40 bytes of credential material overflows even the fallback width.
	_, err := hasher.DeriveSalt(strings.Repeat("u", 20), strings.Repeat("p", 20))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_SALT_FAILED")
}

func TestEncodeSalt_LengthBound(t *testing.T) {
	salt, err := encodeSalt("user", "Pw1!", SaltRandomBytes)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(salt), MaxSaltLength)

	_, err = encodeSalt(strings.Repeat("x", 30), "Pw1!", SaltRandomBytes)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_SALT_TOO_LONG")
}

func TestHashPassword_Deterministic(t *testing.T) {
	hasher := NewHasher(nil)

	salt, err := hasher.DeriveSalt("user", "Passw0rd!")
	require.NoError(t, err)

	first, err := hasher.HashPassword("Passw0rd!", salt)
	require.NoError(t, err)
	second, err := hasher.HashPassword("Passw0rd!", salt)
	require.NoError(t, err)

	assert.Equal(t, first, second, "hashing must be deterministic given (password, salt)")
}

func TestHashPassword_PHCFormat(t *testing.T) {
	hasher := NewHasher(nil)

	salt, err := hasher.DeriveSalt("user", "Passw0rd!")
	require.NoError(t, err)

	hash, err := hasher.HashPassword("Passw0rd!", salt)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"), "unexpected PHC prefix: %s", hash)

	parts := strings.Split(hash, "$")
	require.Len(t, parts, 6)
	assert.Equal(t, string(salt), parts[4])
}

func TestHashPassword_DistinctSalts(t *testing.T) {
	hasher := NewHasher(nil)

	saltA, err := hasher.DeriveSalt("user", "Passw0rd!")
	require.NoError(t, err)
	saltB, err := hasher.DeriveSalt("user", "Passw0rd!")
	require.NoError(t, err)
	require.NotEqual(t, saltA, saltB)

	hashA, err := hasher.HashPassword("Passw0rd!", saltA)
	require.NoError(t, err)
	hashB, err := hasher.HashPassword("Passw0rd!", saltB)
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB, "distinct salts must yield distinct hashes")
}

func TestHashPassword_InvalidSalt(t *testing.T) {
	hasher := NewHasher(nil)

	_, err := hasher.HashPassword("Passw0rd!", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_SALT")

	_, err = hasher.HashPassword("Passw0rd!", "!!!not-base64!!!")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_SALT")
}
