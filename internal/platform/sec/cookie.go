// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieSigner produces and verifies the integrity-signed user-id cookie
// used by the persistent-login fallback path.
//
// # Why a JWT?
//
// The cookie only needs to carry a user id that the client cannot forge.
// An HS256-signed token gives us tamper detection, an embedded expiry, and
// a well-audited parser without inventing a bespoke signing scheme.
type CookieSigner struct {
	secret []byte
	issuer string
}

// cookieClaims is the payload of the signed user-id cookie. Only the
// registered claims are used; the user id travels in Subject.
type cookieClaims struct {
	jwt.RegisteredClaims
}

// NewCookieSigner creates a signer bound to the application session secret.
func NewCookieSigner(secret []byte, issuer string) *CookieSigner {
	return &CookieSigner{secret: secret, issuer: issuer}
}

// Sign wraps userID into a signed cookie value valid for maxAge.
func (signer *CookieSigner) Sign(userID string, maxAge time.Duration) (string, error) {
	currentTime := time.Now()
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    signer.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedValue, err := token.SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign cookie: %w", err)
	}

	return signedValue, nil
}

// Verify checks the signature and expiry of a cookie value and returns the
// embedded user id. Any tampering or algorithm substitution fails.
func (signer *CookieSigner) Verify(value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &cookieClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return signer.secret, nil
	}, jwt.WithIssuer(signer.issuer))

	if err != nil {
		return "", fmt.Errorf("sec: invalid cookie signature: %w", err)
	}

	claims, ok := token.Claims.(*cookieClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("sec: invalid cookie claims")
	}

	return claims.Subject, nil
}
