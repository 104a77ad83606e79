// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Credential mutations are deliberately narrow: each method updates exactly
// the columns of one credential slot in one statement, so the row update is
// the only atomicity primitive the flows rely on.
type UserRepository interface {

	// Create persists a brand-new user account, activation digest included —
	// the digest is generated exactly once, in the same insert as the row.
	Create(ctx context.Context, user *User) error

	// FindByID returns the account with the given id.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail returns the account with the given email address,
	// compared case-insensitively.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile persists changes to name and email.
	UpdateProfile(ctx context.Context, user *User) error

	// UpdatePassword replaces only the password digest.
	UpdatePassword(ctx context.Context, userID, newDigest string) error

	// UpdateRememberDigest sets the remember slot; nil clears it
	// (forgetting the user on every device).
	UpdateRememberDigest(ctx context.Context, userID string, digest *string) error

	// MarkActivated flips activated and stamps activated_at in a single
	// statement, so a crash cannot leave the pair half-written.
	MarkActivated(ctx context.Context, userID string, activatedAt time.Time) error

	// UpdateResetDigest writes the reset digest and its issuance timestamp
	// together; the previous reset credential is overwritten.
	UpdateResetDigest(ctx context.Context, userID, digest string, sentAt time.Time) error

	// ClearResetDigest nulls the reset slot after a successful password
	// change, revoking the consumed token immediately.
	ClearResetDigest(ctx context.Context, userID string) error

	// Delete removes the account row. Owned content cascades at the
	// database level.
	Delete(ctx context.Context, userID string) error
}
