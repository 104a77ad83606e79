// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

// Package sec provides the cryptographic primitives of the credential
// subsystem: slow adaptive digests, random bearer tokens, and the signed
// user-id cookie used for persistent logins.
//
// # Architecture
//
// This package isolates security-sensitive code from the domain logic. It
// holds no state; callers decide where digests and tokens are persisted.
package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DigestCost is the bcrypt cost factor applied to every secret.
//
// Cost 12 is the classic trade-off between login latency and brute-force
// resistance; changing it only affects newly created digests, existing
// digests keep verifying because bcrypt embeds the cost in the output.
const DigestCost = 12

// Digest hashes a secret (password or bearer token) using bcrypt.
//
// Each call salts independently, so two digests of the same secret never
// compare equal. Digests are verifiable, not comparable.
func Digest(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), DigestCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash secret: %w", err)
	}
	return string(hashedBytes), nil
}

// VerifyDigest reports whether secret matches digest.
//
// Absence of a digest is a guaranteed-false authentication, not an error:
// an empty secret or an empty/malformed digest returns false and never
// panics. Comparison happens inside bcrypt in constant time.
func VerifyDigest(secret, digest string) bool {
	if secret == "" || digest == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	return err == nil
}
