// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

/*
Package account implements the user identity and credential lifecycle.

It defines the User entity together with all security-sensitive credential
state (password digest, remember-me digest, activation and password-reset
digests) and the flows that mutate it: signup, login, remember-me,
activation, and password reset.

# Architecture

The entity holds pure credential logic: digest generation and verification.
Persistence goes through [UserRepository]; HTTP concerns live in the
handler. Plaintext tokens exist only as transient in-memory fields for the
instant between generation and cookie/mail emission — they are never
persisted, serialized, or logged.
*/
package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/khayashi/sasayaki/internal/platform/constants"
	"github.com/khayashi/sasayaki/internal/platform/sec"
	"github.com/khayashi/sasayaki/pkg/pointer"
)

// # Token Kinds

// TokenKind selects which digest slot a bearer token is verified against.
//
// An explicit enum replaces dynamic field-name dispatch: the compiler, not a
// string concatenation, decides which credential slot is touched.
type TokenKind int

const (
	// TokenRemember is the long-lived remember-me credential.
	TokenRemember TokenKind = iota

	// TokenActivation proves email ownership at signup.
	TokenActivation

	// TokenReset authorizes a time-limited password change.
	TokenReset
)

// String returns the lowercase kind name for logging.
func (kind TokenKind) String() string {
	switch kind {
	case TokenRemember:
		return "remember"
	case TokenActivation:
		return "activation"
	case TokenReset:
		return "reset"
	default:
		return "unknown"
	}
}

// # Domain Entity

// User represents a registered member of the Sasayaki platform.
//
// The digest fields hold bcrypt output only; plaintext secrets never reach
// storage. RememberDigest and ResetDigest are single mutable slots per user:
// issuing a new remember or reset token invalidates the previous one on all
// devices. This is a deliberate simplicity trade-off, not a bug.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	// PasswordDigest is never empty for a persisted account and is
	// explicitly omitted from JSON for security.
	PasswordDigest string `json:"-"`

	// RememberDigest is nil when the user is not remembered on any device.
	RememberDigest *string `json:"-"`

	// RememberToken is the plaintext remember token, held transiently after
	// Remember() for immediate cookie issuance. Never persisted.
	RememberToken string `json:"-"`

	// ActivationDigest is generated exactly once, in the same transaction
	// as the initial insert, and is dormant after successful activation.
	ActivationDigest string `json:"-"`

	// ActivationToken is the plaintext activation token, held transiently
	// for the outgoing signup mail. Never persisted.
	ActivationToken string `json:"-"`

	Activated   bool       `json:"activated"`
	ActivatedAt StoredTime `json:"activated_at,omitzero"`

	// ResetDigest and ResetSentAt are always set together; a new reset
	// request overwrites both, implicitly revoking the previous token.
	ResetDigest *string    `json:"-"`
	ResetSentAt StoredTime `json:"-"`

	// ResetToken is the plaintext reset token for the outgoing mail.
	ResetToken string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail lowercases an address; emails are stored and compared
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// # Credential Methods

// Authenticate reports whether password matches the stored password digest.
// A missing digest or empty password is a guaranteed false, never an error.
func (user *User) Authenticate(password string) bool {
	return sec.VerifyDigest(password, user.PasswordDigest)
}

// digestFor maps a token kind onto its digest slot. Nil means "no credential
// of this kind", which verifies as false.
func (user *User) digestFor(kind TokenKind) *string {
	switch kind {
	case TokenRemember:
		return user.RememberDigest
	case TokenActivation:
		if user.ActivationDigest == "" {
			return nil
		}
		return &user.ActivationDigest
	case TokenReset:
		return user.ResetDigest
	default:
		return nil
	}
}

// IsAuthenticated reports whether token matches the digest stored for kind.
// An absent digest yields false.
func (user *User) IsAuthenticated(kind TokenKind, token string) bool {
	digest := user.digestFor(kind)
	if digest == nil {
		return false
	}
	return sec.VerifyDigest(token, *digest)
}

// Remember generates a fresh remember token and stores its digest on the
// in-memory entity, keeping the plaintext for immediate cookie issuance.
// Overwrites any prior remember credential (single slot).
//
// Persistence is the caller's job (see [Service.Remember]).
func (user *User) Remember() error {
	token, err := sec.NewToken(constants.SecureTokenLength)
	if err != nil {
		return err
	}
	digest, err := sec.Digest(token)
	if err != nil {
		return err
	}

	user.RememberToken = token
	user.RememberDigest = pointer.To(digest)
	return nil
}

// Forget clears the remember credential, invalidating remember-me cookies
// on every device.
func (user *User) Forget() {
	user.RememberToken = ""
	user.RememberDigest = nil
}

// CreateActivationDigest generates the activation token/digest pair. Called
// exactly once, before the initial insert; the plaintext token rides along
// in memory for the signup mail.
func (user *User) CreateActivationDigest() error {
	token, err := sec.NewToken(constants.SecureTokenLength)
	if err != nil {
		return err
	}
	digest, err := sec.Digest(token)
	if err != nil {
		return err
	}

	user.ActivationToken = token
	user.ActivationDigest = digest
	return nil
}

// CreateResetDigest generates a fresh reset token/digest pair and stamps
// ResetSentAt. The previous reset token, if any, stops verifying the moment
// the new digest is persisted.
func (user *User) CreateResetDigest() error {
	token, err := sec.NewToken(constants.SecureTokenLength)
	if err != nil {
		return err
	}
	digest, err := sec.Digest(token)
	if err != nil {
		return err
	}

	user.ResetToken = token
	user.ResetDigest = pointer.To(digest)
	user.ResetSentAt = StoredTimeOf(time.Now())
	return nil
}

// IsPasswordResetExpired reports whether the current reset token has aged
// past the 2-hour window. A user with no reset issuance counts as expired.
func (user *User) IsPasswordResetExpired() bool {
	if !user.ResetSentAt.Valid {
		return true
	}
	return time.Since(user.ResetSentAt.Time) > constants.PasswordResetExpiry
}

// String implements fmt.Stringer without exposing credential fields in logs.
func (user *User) String() string {
	return fmt.Sprintf("account.User{ID:%s Email:%s Activated:%t}", user.ID, user.Email, user.Activated)
}
