// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

/*
Package csrf implements the synchronizer-token CSRF defense.

A per-session secret is created lazily and lives server-side in the Redis
session for the session's whole life. Every form render derives a fresh
token from that secret: token = salt + "." + HMAC-SHA256(secret, salt).
Many distinct valid tokens derive from one secret, so pages can be rendered
concurrently without invalidating each other.

State-changing requests (POST, PUT, PATCH, DELETE) must present a token in
the _csrf form field or the X-CSRF-Token header. Verification recomputes the
HMAC; any mismatch aborts the request with a generic 403 before handler
logic runs.
*/
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/khayashi/sasayaki/internal/platform/apperr"
	"github.com/khayashi/sasayaki/internal/platform/constants"
	"github.com/khayashi/sasayaki/internal/platform/respond"
	"github.com/khayashi/sasayaki/internal/platform/sec"
	"github.com/khayashi/sasayaki/internal/platform/session"
)

// saltLength is the per-token salt size in bytes before encoding.
const saltLength = 8

// CreateToken derives a one-off form token from the session secret.
func CreateToken(secret string) (string, error) {
	salt, err := sec.NewToken(saltLength)
	if err != nil {
		return "", err
	}
	return salt + "." + deriveMAC(secret, salt), nil
}

// VerifyToken reports whether token was derived from secret.
//
// A missing secret or malformed token is simply false — the guard turns
// that into a 403, never an application error.
func VerifyToken(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}

	salt, mac, found := strings.Cut(token, ".")
	if !found || salt == "" || mac == "" {
		return false
	}

	expected := deriveMAC(secret, salt)
	return hmac.Equal([]byte(expected), []byte(mac))
}

// deriveMAC computes base64url(HMAC-SHA256(secret, salt)).
func deriveMAC(secret, salt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(salt))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// TokenForSession renders a fresh token for embedding into a form, creating
// the session secret on first use.
func TokenForSession(r *http.Request) (string, error) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		return "", apperr.Internal(nil)
	}

	secret, err := sess.CSRFSecret(r.Context())
	if err != nil {
		return "", err
	}
	return CreateToken(secret)
}

// Guard is the middleware enforcing token verification on state-changing
// requests. Safe methods pass through untouched.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(writer, request)
			return
		}

		sess := session.FromContext(request.Context())
		if sess == nil {
			respond.Error(writer, request, apperr.Forbidden("invalid request"))
			return
		}

		// A session that has never rendered a form has no secret; there is
		// nothing a legitimate token could have been derived from.
		secret, err := sess.PeekCSRFSecret(request.Context())
		if err != nil || secret == "" {
			respond.Error(writer, request, apperr.Forbidden("invalid request"))
			return
		}

		token := request.PostFormValue(constants.CSRFFieldName)
		if token == "" {
			token = request.Header.Get(constants.CSRFHeaderName)
		}

		if !VerifyToken(secret, token) {
			respond.Error(writer, request, apperr.Forbidden("invalid request"))
			return
		}

		next.ServeHTTP(writer, request)
	})
}
