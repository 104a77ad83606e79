// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewToken generates a URL-safe opaque bearer token with length bytes of
// entropy from the operating system's CSPRNG.
//
// Tokens are stateless and never reused; the caller is responsible for
// digesting them before persistence.
func NewToken(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("sec: failed to read random source: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
