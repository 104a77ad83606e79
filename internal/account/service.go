// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account

import (
	"context"
	"fmt"
	"time"

	"github.com/khayashi/sasayaki/internal/platform/apperr"
	"github.com/khayashi/sasayaki/internal/platform/constants"
	"github.com/khayashi/sasayaki/internal/platform/sec"
	"github.com/khayashi/sasayaki/internal/platform/validate"
	"github.com/khayashi/sasayaki/pkg/uuidv7"
)

// # Sentinel Errors

// Credential failures share deliberately generic messages: a response must
// never disclose whether an email exists, which digest was wrong, or which
// branch rejected the request.
var (
	// ErrLoginFailed covers unknown email and wrong password alike.
	ErrLoginFailed = apperr.AuthenticationFailed("Invalid email/password combination")

	// ErrInvalidActivation covers every activation-link failure mode.
	ErrInvalidActivation = apperr.AuthenticationFailed("Invalid activation link")

	// ErrInvalidReset covers unknown email, inactive account, and digest
	// mismatch on the reset link.
	ErrInvalidReset = apperr.AuthenticationFailed("Invalid password reset link")

	// ErrResetExpired is distinguishable from ErrInvalidReset so the
	// handler can route the user back to the request form.
	ErrResetExpired = apperr.AuthenticationFailed("Password reset has expired")
)

// Service implements the credential-lifecycle use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, token
// issuance, or verification logic must be reviewed by the security team.
type Service struct {
	users   UserRepository
	mailer  Mailer
	baseURL string
}

// NewService constructs a [Service] with its dependencies.
func NewService(users UserRepository, mailer Mailer, baseURL string) *Service {
	return &Service{
		users:   users,
		mailer:  mailer,
		baseURL: baseURL,
	}
}

// # Signup

// SignupInput holds the data required to enroll a new member.
type SignupInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

/*
Signup validates, hashes, and persists a brand new (unactivated) account.

Description: Enforces the signup validation rules, creates the activation
digest in the same insert as the row, and dispatches the activation mail
carrying the plaintext token.

Parameters:
  - ctx: context.Context
  - input: SignupInput

Returns:
  - *User: Created entity (ActivationToken still in memory)
  - error: Validation (422) or storage errors
*/
func (service *Service) Signup(ctx context.Context, input SignupInput) (*User, error) {
	if err := service.validateSignup(ctx, input); err != nil {
		return nil, err
	}

	passwordDigest, err := sec.Digest(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	user := &User{
		ID:             uuidv7.New(),
		Name:           input.Name,
		Email:          NormalizeEmail(input.Email),
		PasswordDigest: passwordDigest,
		Activated:      false,
	}

	// Generated exactly once, persisted atomically with the insert.
	if err := user.CreateActivationDigest(); err != nil {
		return nil, fmt.Errorf("account_service_activation_digest_failed: %w", err)
	}

	if err := service.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("account_service_signup_failed: %w", err)
	}

	if err := service.mailer.SendAccountActivation(ctx, user, activationURL(service.baseURL, user)); err != nil {
		// The account exists; a failed mail is reported, not rolled back.
		return nil, fmt.Errorf("account_service_activation_mail_failed: %w", err)
	}

	return user, nil
}

// validateSignup applies the signup rules: name presence and length, email
// presence/format/length/uniqueness, password length and confirmation.
func (service *Service) validateSignup(ctx context.Context, input SignupInput) error {
	v := &validate.Validator{}
	v.Required("name", input.Name).
		MaxLen("name", input.Name, constants.NameMaxLength).
		Required("email", input.Email).
		MaxLen("email", input.Email, constants.EmailMaxLength).
		Email("email", input.Email).
		Required("password", input.Password).
		MinLen("password", input.Password, constants.PasswordMinLength).
		Confirmed("passwordConfirmation", input.Password, input.PasswordConfirmation)

	if v.HasErrors() {
		return v.Err()
	}

	if _, err := service.users.FindByEmail(ctx, input.Email); err == nil {
		v.Custom("email", true, "has already been taken")
	}

	return v.Err()
}

// # Login & Remember-Me

/*
Login verifies an email/password pair.

Description: Looks up the account case-insensitively and verifies the
password against its digest. All failure modes collapse into
[ErrLoginFailed]; response timing is dominated by the bcrypt comparison in
the found-user path.

Returns:
  - *User: The authenticated account
  - error: ErrLoginFailed
*/
func (service *Service) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrLoginFailed
	}

	if !user.Authenticate(password) {
		return nil, ErrLoginFailed
	}

	return user, nil
}

// Remember issues a fresh remember-me credential and persists its digest.
// The plaintext token stays on the entity for cookie issuance. The single
// remember slot means any earlier remembered device is logged out.
func (service *Service) Remember(ctx context.Context, user *User) error {
	if err := user.Remember(); err != nil {
		return fmt.Errorf("account_service_remember_failed: %w", err)
	}
	if err := service.users.UpdateRememberDigest(ctx, user.ID, user.RememberDigest); err != nil {
		return fmt.Errorf("account_service_remember_failed: %w", err)
	}
	return nil
}

// Forget clears the remember credential everywhere.
func (service *Service) Forget(ctx context.Context, user *User) error {
	user.Forget()
	if err := service.users.UpdateRememberDigest(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("account_service_forget_failed: %w", err)
	}
	return nil
}

// # Account Activation

/*
Activate consumes an activation link.

Description: Valid iff the email maps to an account, the account is not yet
activated, and the token matches the activation digest. Activation writes
both columns in one statement and treats the link as proof of email
ownership, so the caller may log the user in directly.

Returns:
  - *User: The freshly activated account
  - error: ErrInvalidActivation, with no state change
*/
func (service *Service) Activate(ctx context.Context, email, token string) (*User, error) {
	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidActivation
	}

	if user.Activated || !user.IsAuthenticated(TokenActivation, token) {
		return nil, ErrInvalidActivation
	}

	activatedAt := time.Now()
	if err := service.users.MarkActivated(ctx, user.ID, activatedAt); err != nil {
		return nil, fmt.Errorf("account_service_activate_failed: %w", err)
	}

	user.Activated = true
	user.ActivatedAt = StoredTimeOf(activatedAt)
	return user, nil
}

// # Password Reset

/*
RequestPasswordReset initiates the forgot-password flow.

Description: When the email maps to an account, a fresh reset token/digest
pair is issued (digest and sent-at written together, superseding any prior
token) and the reset mail is dispatched. An unknown email is NOT an error —
the handler shows the same confirmation either way to prevent enumeration.

Returns:
  - error: Storage or mail failures only
*/
func (service *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		return nil
	}

	if err := user.CreateResetDigest(); err != nil {
		return fmt.Errorf("account_service_reset_digest_failed: %w", err)
	}
	if err := service.users.UpdateResetDigest(ctx, user.ID, *user.ResetDigest, user.ResetSentAt.Time); err != nil {
		return fmt.Errorf("account_service_reset_save_failed: %w", err)
	}

	if err := service.mailer.SendPasswordReset(ctx, user, resetURL(service.baseURL, user)); err != nil {
		return fmt.Errorf("account_service_reset_mail_failed: %w", err)
	}

	return nil
}

/*
AuthorizePasswordReset validates a reset link without changing state.

Description: Shared by the GET (form render) and the final submit. Valid iff
the user exists, is activated, the token matches the reset digest, and the
2-hour window has not elapsed.

Returns:
  - *User: The account allowed to reset
  - error: ErrInvalidReset or ErrResetExpired
*/
func (service *Service) AuthorizePasswordReset(ctx context.Context, email, token string) (*User, error) {
	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidReset
	}

	if !user.Activated || !user.IsAuthenticated(TokenReset, token) {
		return nil, ErrInvalidReset
	}

	if user.IsPasswordResetExpired() {
		return nil, ErrResetExpired
	}

	return user, nil
}

// ResetPasswordInput is the final submit of the reset flow.
type ResetPasswordInput struct {
	Email                string
	Token                string
	Password             string
	PasswordConfirmation string
}

/*
CompletePasswordReset performs the actual password change.

Description: Re-validates token and email exactly like the edit link,
enforces the signup password rule, replaces the password digest, and clears
the consumed reset credential so the link cannot be replayed.

Returns:
  - *User: The account with its new password in effect
  - error: ErrInvalidReset, ErrResetExpired, validation (422), or storage errors
*/
func (service *Service) CompletePasswordReset(ctx context.Context, input ResetPasswordInput) (*User, error) {
	user, err := service.AuthorizePasswordReset(ctx, input.Email, input.Token)
	if err != nil {
		return nil, err
	}

	v := &validate.Validator{}
	v.Required("password", input.Password).
		MinLen("password", input.Password, constants.PasswordMinLength).
		Confirmed("passwordConfirmation", input.Password, input.PasswordConfirmation)
	if err := v.Err(); err != nil {
		return nil, err
	}

	newDigest, err := sec.Digest(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account_service_reset_hash_failed: %w", err)
	}

	if err := service.users.UpdatePassword(ctx, user.ID, newDigest); err != nil {
		return nil, fmt.Errorf("account_service_reset_update_failed: %w", err)
	}
	user.PasswordDigest = newDigest

	// Revoke the consumed token; an unexpired link must not be replayable.
	if err := service.users.ClearResetDigest(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("account_service_reset_clear_failed: %w", err)
	}
	user.ResetDigest = nil
	user.ResetSentAt = StoredTime{}

	return user, nil
}

// # Profile

// UpdateProfileInput carries the editable profile fields.
type UpdateProfileInput struct {
	Name  string
	Email string
}

// UpdateProfile validates and persists name/email changes on an
// authenticated user's own account.
func (service *Service) UpdateProfile(ctx context.Context, user *User, input UpdateProfileInput) (*User, error) {
	v := &validate.Validator{}
	v.Required("name", input.Name).
		MaxLen("name", input.Name, constants.NameMaxLength).
		Required("email", input.Email).
		MaxLen("email", input.Email, constants.EmailMaxLength).
		Email("email", input.Email)
	if v.HasErrors() {
		return nil, v.Err()
	}

	if NormalizeEmail(input.Email) != user.Email {
		if _, err := service.users.FindByEmail(ctx, input.Email); err == nil {
			v.Custom("email", true, "has already been taken")
			return nil, v.Err()
		}
	}

	user.Name = input.Name
	user.Email = NormalizeEmail(input.Email)
	if err := service.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("account_service_update_profile_failed: %w", err)
	}

	return user, nil
}

// Delete removes the account row. The caller is responsible for destroying
// the session afterwards.
func (service *Service) Delete(ctx context.Context, user *User) error {
	if err := service.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("account_service_delete_failed: %w", err)
	}
	return nil
}

// FindByID resolves an account by id for profile pages and the identity
// resolver.
func (service *Service) FindByID(ctx context.Context, id string) (*User, error) {
	return service.users.FindByID(ctx, id)
}
