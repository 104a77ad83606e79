// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: Cookie names, session lifetimes, and credential policy values.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "sasayaki-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Cookies & Sessions

const (
	// SessionCookieName holds the opaque server-side session identifier.
	SessionCookieName = "_sasayaki_session"

	// UserIDCookieName holds the integrity-signed user id for persistent logins.
	UserIDCookieName = "user_id"

	// RememberTokenCookieName holds the plaintext remember-me bearer token.
	// Its digest, never the token itself, is stored on the user row.
	RememberTokenCookieName = "remember_token"

	// SessionTTL is the idle lifetime of a server-side session.
	SessionTTL = 24 * time.Hour

	// PermanentCookieMaxAge mirrors the classic "permanent" cookie: 20 years.
	PermanentCookieMaxAge = 20 * 365 * 24 * time.Hour

	// CookieSignerIssuer is the 'iss' claim on the signed user-id cookie.
	CookieSignerIssuer = "sasayaki.app"
)

// # Credential Policy

const (
	// PasswordResetExpiry is the validity window of a password-reset token.
	PasswordResetExpiry = 2 * time.Hour

	// SecureTokenLength is the byte length of random bearer tokens
	// (remember-me, activation, password reset) before URL-safe encoding.
	SecureTokenLength = 32

	// PasswordMinLength is the minimum accepted password length at signup
	// and at password reset.
	PasswordMinLength = 6

	// NameMaxLength bounds the display name column.
	NameMaxLength = 50

	// EmailMaxLength bounds the email column.
	EmailMaxLength = 255
)

// # Form Field Conventions

const (
	// CSRFFieldName is the form field carrying the per-form CSRF token.
	CSRFFieldName = "_csrf"

	// CSRFHeaderName is the header alternative for non-form clients.
	CSRFHeaderName = "X-CSRF-Token"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSession = "session:data:"
)
