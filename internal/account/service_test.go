// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khayashi/sasayaki/internal/account"
	"github.com/khayashi/sasayaki/internal/platform/apperr"
)

// # Test Doubles

// memoryRepository is an in-memory UserRepository for service-level tests.
type memoryRepository struct {
	mu    sync.Mutex
	users map[string]*account.User
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{users: make(map[string]*account.User)}
}

func (repo *memoryRepository) Create(_ context.Context, user *account.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	repo.users[user.ID] = &clone
	return nil
}

func (repo *memoryRepository) FindByID(_ context.Context, id string) (*account.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if user, ok := repo.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryRepository) FindByEmail(_ context.Context, email string) (*account.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, user := range repo.users {
		if user.Email == normalized {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryRepository) UpdateProfile(_ context.Context, user *account.User) error {
	return repo.mutate(user.ID, func(stored *account.User) {
		stored.Name = user.Name
		stored.Email = user.Email
	})
}

func (repo *memoryRepository) UpdatePassword(_ context.Context, userID, newDigest string) error {
	return repo.mutate(userID, func(stored *account.User) {
		stored.PasswordDigest = newDigest
	})
}

func (repo *memoryRepository) UpdateRememberDigest(_ context.Context, userID string, digest *string) error {
	return repo.mutate(userID, func(stored *account.User) {
		stored.RememberDigest = digest
	})
}

func (repo *memoryRepository) MarkActivated(_ context.Context, userID string, activatedAt time.Time) error {
	return repo.mutate(userID, func(stored *account.User) {
		stored.Activated = true
		stored.ActivatedAt = account.StoredTimeOf(activatedAt)
	})
}

func (repo *memoryRepository) UpdateResetDigest(_ context.Context, userID, digest string, sentAt time.Time) error {
	return repo.mutate(userID, func(stored *account.User) {
		stored.ResetDigest = &digest
		stored.ResetSentAt = account.StoredTimeOf(sentAt)
	})
}

func (repo *memoryRepository) ClearResetDigest(_ context.Context, userID string) error {
	return repo.mutate(userID, func(stored *account.User) {
		stored.ResetDigest = nil
		stored.ResetSentAt = account.StoredTime{}
	})
}

func (repo *memoryRepository) Delete(_ context.Context, userID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.users[userID]; !ok {
		return apperr.NotFound("User")
	}
	delete(repo.users, userID)
	return nil
}

func (repo *memoryRepository) mutate(userID string, fn func(*account.User)) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stored, ok := repo.users[userID]
	if !ok {
		return apperr.NotFound("User")
	}
	fn(stored)
	stored.UpdatedAt = time.Now()
	return nil
}

// recordingMailer captures outgoing mail instead of sending it, so tests can
// extract the plaintext token from the link.
type recordingMailer struct {
	activations []sentMail
	resets      []sentMail
}

type sentMail struct {
	email string
	url   string
	token string
}

func (mailer *recordingMailer) SendAccountActivation(_ context.Context, user *account.User, activationURL string) error {
	mailer.activations = append(mailer.activations, sentMail{
		email: user.Email,
		url:   activationURL,
		token: user.ActivationToken,
	})
	return nil
}

func (mailer *recordingMailer) SendPasswordReset(_ context.Context, user *account.User, resetURL string) error {
	mailer.resets = append(mailer.resets, sentMail{
		email: user.Email,
		url:   resetURL,
		token: user.ResetToken,
	})
	return nil
}

// newTestService builds a Service over in-memory collaborators.
func newTestService() (*account.Service, *memoryRepository, *recordingMailer) {
	repo := newMemoryRepository()
	mailer := &recordingMailer{}
	return account.NewService(repo, mailer, "http://localhost:8080"), repo, mailer
}

func signupFixture() account.SignupInput {
	return account.SignupInput{
		Name:                 "Ami Hayashi",
		Email:                "Ami@Example.com",
		Password:             "hunter22",
		PasswordConfirmation: "hunter22",
	}
}

// # Signup

/*
TestService_Signup checks the happy path: normalized email, hashed password,
an activation digest persisted with the row, and the activation mail
carrying a working token.
*/
func TestService_Signup(t *testing.T) {
	service, repo, mailer := newTestService()
	ctx := context.Background()

	user, err := service.Signup(ctx, signupFixture())
	require.NoError(t, err)

	assert.Equal(t, "ami@example.com", user.Email)
	assert.False(t, user.Activated)
	assert.NotEqual(t, "hunter22", user.PasswordDigest)
	assert.True(t, user.Authenticate("hunter22"))

	stored, err := repo.FindByEmail(ctx, "ami@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ActivationDigest)

	require.Len(t, mailer.activations, 1)
	mail := mailer.activations[0]
	assert.Contains(t, mail.url, "/account_activations/")
	assert.Contains(t, mail.url, "email=ami%40example.com")
	assert.True(t, stored.IsAuthenticated(account.TokenActivation, mail.token))
}

/*
TestService_Signup_Validation covers the rejection rules.
*/
func TestService_Signup_Validation(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*account.SignupInput)
		field  string
	}{
		{"blank_name", func(in *account.SignupInput) { in.Name = " " }, "name"},
		{"long_name", func(in *account.SignupInput) { in.Name = strings.Repeat("a", 51) }, "name"},
		{"blank_email", func(in *account.SignupInput) { in.Email = "" }, "email"},
		{"bad_email", func(in *account.SignupInput) { in.Email = "not-an-address" }, "email"},
		{"long_email", func(in *account.SignupInput) { in.Email = strings.Repeat("a", 250) + "@example.com" }, "email"},
		{"short_password", func(in *account.SignupInput) { in.Password = "12345"; in.PasswordConfirmation = "12345" }, "password"},
		{"mismatched_confirmation", func(in *account.SignupInput) { in.PasswordConfirmation = "different" }, "passwordConfirmation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := signupFixture()
			tt.mutate(&input)

			_, err := service.Signup(ctx, input)
			require.Error(t, err)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, 422, ae.HTTPStatus)

			fields := make([]string, 0, len(ae.Details))
			for _, detail := range ae.Details {
				fields = append(fields, detail.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

/*
TestService_Signup_DuplicateEmail rejects a second signup with the same
address, regardless of letter case.
*/
func TestService_Signup_DuplicateEmail(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	_, err := service.Signup(ctx, signupFixture())
	require.NoError(t, err)

	second := signupFixture()
	second.Email = "AMI@example.com"
	_, err = service.Signup(ctx, second)
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "VALIDATION_ERROR", ae.Code)
}

// # Login

/*
TestService_Login verifies the credential check and that unknown email and
wrong password are indistinguishable.
*/
func TestService_Login(t *testing.T) {
	service, _, _ := newTestService()
	ctx := context.Background()

	created, err := service.Signup(ctx, signupFixture())
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		user, err := service.Login(ctx, "ami@example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})

	t.Run("case_insensitive_email", func(t *testing.T) {
		_, err := service.Login(ctx, "AMI@EXAMPLE.COM", "hunter22")
		assert.NoError(t, err)
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, err := service.Login(ctx, "ami@example.com", "wrong")
		assert.ErrorIs(t, err, account.ErrLoginFailed)
	})

	t.Run("unknown_email_same_error", func(t *testing.T) {
		_, err := service.Login(ctx, "nobody@example.com", "hunter22")
		assert.ErrorIs(t, err, account.ErrLoginFailed)
	})
}

// # Remember-Me

/*
TestService_RememberAndForget round-trips the persisted remember digest.
*/
func TestService_RememberAndForget(t *testing.T) {
	service, repo, _ := newTestService()
	ctx := context.Background()

	user, err := service.Signup(ctx, signupFixture())
	require.NoError(t, err)

	require.NoError(t, service.Remember(ctx, user))
	require.NotEmpty(t, user.RememberToken)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAuthenticated(account.TokenRemember, user.RememberToken))

	require.NoError(t, service.Forget(ctx, user))
	stored, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RememberDigest)
}

// # Activation

/*
TestService_Activate covers link consumption: valid token activates in one
step, wrong token / wrong email / double activation all collapse into the
same generic error without touching state.
*/
func TestService_Activate(t *testing.T) {
	service, repo, mailer := newTestService()
	ctx := context.Background()

	user, err := service.Signup(ctx, signupFixture())
	require.NoError(t, err)
	token := mailer.activations[0].token

	t.Run("wrong_token", func(t *testing.T) {
		_, err := service.Activate(ctx, user.Email, "bogus-token")
		assert.ErrorIs(t, err, account.ErrInvalidActivation)

		stored, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, stored.Activated)
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, err := service.Activate(ctx, "nobody@example.com", token)
		assert.ErrorIs(t, err, account.ErrInvalidActivation)
	})

	t.Run("success", func(t *testing.T) {
		activated, err := service.Activate(ctx, user.Email, token)
		require.NoError(t, err)
		assert.True(t, activated.Activated)
		assert.True(t, activated.ActivatedAt.Valid)

		stored, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, stored.Activated)
	})

	t.Run("replay_rejected", func(t *testing.T) {
		_, err := service.Activate(ctx, user.Email, token)
		assert.ErrorIs(t, err, account.ErrInvalidActivation)
	})
}

// # Password Reset

// activatedUser signs up and activates a fixture account.
func activatedUser(t *testing.T, service *account.Service, mailer *recordingMailer) *account.User {
	t.Helper()
	ctx := context.Background()

	user, err := service.Signup(ctx, signupFixture())
	require.NoError(t, err)

	activated, err := service.Activate(ctx, user.Email, mailer.activations[len(mailer.activations)-1].token)
	require.NoError(t, err)
	return activated
}

/*
TestService_RequestPasswordReset checks token issuance and the enumeration
guarantee: an unknown email is silently accepted and sends nothing.
*/
func TestService_RequestPasswordReset(t *testing.T) {
	service, repo, mailer := newTestService()
	ctx := context.Background()
	user := activatedUser(t, service, mailer)

	t.Run("unknown_email_is_silent", func(t *testing.T) {
		require.NoError(t, service.RequestPasswordReset(ctx, "nobody@example.com"))
		assert.Empty(t, mailer.resets)
	})

	t.Run("issues_token", func(t *testing.T) {
		require.NoError(t, service.RequestPasswordReset(ctx, user.Email))
		require.Len(t, mailer.resets, 1)

		stored, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ResetDigest)
		assert.True(t, stored.IsAuthenticated(account.TokenReset, mailer.resets[0].token))
		assert.Contains(t, mailer.resets[0].url, "/password_resets/")
	})

	t.Run("second_request_revokes_first", func(t *testing.T) {
		require.NoError(t, service.RequestPasswordReset(ctx, user.Email))
		require.Len(t, mailer.resets, 2)

		stored, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsAuthenticated(account.TokenReset, mailer.resets[0].token))
		assert.True(t, stored.IsAuthenticated(account.TokenReset, mailer.resets[1].token))
	})
}

/*
TestService_AuthorizePasswordReset covers link validation: inactive account,
bad token, expiry.
*/
func TestService_AuthorizePasswordReset(t *testing.T) {
	service, repo, mailer := newTestService()
	ctx := context.Background()
	user := activatedUser(t, service, mailer)

	require.NoError(t, service.RequestPasswordReset(ctx, user.Email))
	token := mailer.resets[0].token

	t.Run("valid", func(t *testing.T) {
		authorized, err := service.AuthorizePasswordReset(ctx, user.Email, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, authorized.ID)
	})

	t.Run("wrong_token", func(t *testing.T) {
		_, err := service.AuthorizePasswordReset(ctx, user.Email, "bogus")
		assert.ErrorIs(t, err, account.ErrInvalidReset)
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, err := service.AuthorizePasswordReset(ctx, "nobody@example.com", token)
		assert.ErrorIs(t, err, account.ErrInvalidReset)
	})

	t.Run("expired", func(t *testing.T) {
		stored, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateResetDigest(ctx, user.ID, *stored.ResetDigest, time.Now().Add(-3*time.Hour)))

		_, err = service.AuthorizePasswordReset(ctx, user.Email, token)
		assert.ErrorIs(t, err, account.ErrResetExpired)
	})
}

/*
TestService_CompletePasswordReset covers the final submit: the password
changes, the consumed token is revoked, and the old password stops working.
*/
func TestService_CompletePasswordReset(t *testing.T) {
	service, repo, mailer := newTestService()
	ctx := context.Background()
	user := activatedUser(t, service, mailer)

	require.NoError(t, service.RequestPasswordReset(ctx, user.Email))
	token := mailer.resets[0].token

	t.Run("weak_password_rejected", func(t *testing.T) {
		_, err := service.CompletePasswordReset(ctx, account.ResetPasswordInput{
			Email: user.Email, Token: token,
			Password: "short", PasswordConfirmation: "short",
		})
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "VALIDATION_ERROR", ae.Code)

		// Rejection must not consume the token.
		stored, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.ResetDigest)
	})

	t.Run("success", func(t *testing.T) {
		changed, err := service.CompletePasswordReset(ctx, account.ResetPasswordInput{
			Email: user.Email, Token: token,
			Password: "newpassword", PasswordConfirmation: "newpassword",
		})
		require.NoError(t, err)
		assert.True(t, changed.Authenticate("newpassword"))

		// Login switches over to the new password.
		_, err = service.Login(ctx, user.Email, "newpassword")
		assert.NoError(t, err)
		_, err = service.Login(ctx, user.Email, "hunter22")
		assert.ErrorIs(t, err, account.ErrLoginFailed)

		// The consumed link is dead.
		stored, err := repo.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ResetDigest)
		_, err = service.CompletePasswordReset(ctx, account.ResetPasswordInput{
			Email: user.Email, Token: token,
			Password: "anothernew", PasswordConfirmation: "anothernew",
		})
		assert.ErrorIs(t, err, account.ErrInvalidReset)
	})
}

// # Profile

/*
TestService_UpdateProfile checks validation and duplicate detection on edits.
*/
func TestService_UpdateProfile(t *testing.T) {
	service, _, mailer := newTestService()
	ctx := context.Background()
	user := activatedUser(t, service, mailer)

	t.Run("success", func(t *testing.T) {
		updated, err := service.UpdateProfile(ctx, user, account.UpdateProfileInput{
			Name: "Ami H.", Email: "ami.h@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "Ami H.", updated.Name)
		assert.Equal(t, "ami.h@example.com", updated.Email)
	})

	t.Run("taken_email", func(t *testing.T) {
		other := signupFixture()
		other.Email = "taken@example.com"
		_, err := service.Signup(ctx, other)
		require.NoError(t, err)

		_, err = service.UpdateProfile(ctx, user, account.UpdateProfileInput{
			Name: "Ami", Email: "taken@example.com",
		})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
	})

	t.Run("keeping_own_email_is_fine", func(t *testing.T) {
		_, err := service.UpdateProfile(ctx, user, account.UpdateProfileInput{
			Name: "Ami", Email: user.Email,
		})
		assert.NoError(t, err)
	})
}

/*
TestService_Delete removes the row.
*/
func TestService_Delete(t *testing.T) {
	service, repo, mailer := newTestService()
	ctx := context.Background()
	user := activatedUser(t, service, mailer)

	require.NoError(t, service.Delete(ctx, user))
	_, err := repo.FindByID(ctx, user.ID)
	assert.Error(t, err)
}
