// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package sec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khayashi/sasayaki/internal/platform/sec"
)

/*
TestDigest_VerifyRoundTrip checks that a digested secret verifies and that
two digests of the same secret are never byte-equal (random salt per call).
*/
func TestDigest_VerifyRoundTrip(t *testing.T) {
	first, err := sec.Digest("correct horse battery")
	require.NoError(t, err)

	second, err := sec.Digest("correct horse battery")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, sec.VerifyDigest("correct horse battery", first))
	assert.True(t, sec.VerifyDigest("correct horse battery", second))
	assert.False(t, sec.VerifyDigest("wrong secret", first))
}

/*
TestVerifyDigest_AbsentInputs covers the guaranteed-false cases: a missing
digest and an empty secret must return false without panicking.
*/
func TestVerifyDigest_AbsentInputs(t *testing.T) {
	digest, err := sec.Digest("something")
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		digest string
	}{
		{"nil_digest", "something", ""},
		{"empty_secret", "", digest},
		{"both_empty", "", ""},
		{"malformed_digest", "something", "not-a-bcrypt-digest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, sec.VerifyDigest(tt.secret, tt.digest))
		})
	}
}

/*
TestNewToken verifies token length, URL safety, and per-call uniqueness.
*/
func TestNewToken(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 32; i++ {
		token, err := sec.NewToken(32)
		require.NoError(t, err)

		// 32 random bytes encode to 43 base64url characters.
		assert.Len(t, token, 43)
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")
		assert.NotContains(t, token, "=")

		assert.False(t, seen[token], "token generated twice")
		seen[token] = true
	}
}

/*
TestCookieSigner covers the signed user-id cookie: round trip, tampering,
wrong key, and expiry.
*/
func TestCookieSigner(t *testing.T) {
	signer := sec.NewCookieSigner([]byte("test-secret"), "sasayaki.app")

	t.Run("round_trip", func(t *testing.T) {
		value, err := signer.Sign("user-42", time.Hour)
		require.NoError(t, err)

		userID, err := signer.Verify(value)
		require.NoError(t, err)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("tampered_value", func(t *testing.T) {
		value, err := signer.Sign("user-42", time.Hour)
		require.NoError(t, err)

		_, err = signer.Verify(value + "x")
		assert.Error(t, err)
	})

	t.Run("wrong_key", func(t *testing.T) {
		other := sec.NewCookieSigner([]byte("other-secret"), "sasayaki.app")
		value, err := other.Sign("user-42", time.Hour)
		require.NoError(t, err)

		_, err = signer.Verify(value)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		value, err := signer.Sign("user-42", -time.Minute)
		require.NoError(t, err)

		_, err = signer.Verify(value)
		assert.Error(t, err)
	})
}
