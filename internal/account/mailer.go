// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account

import (
	"context"
	"log/slog"
	"net/url"
)

// Mailer delivers credential-lifecycle mail. Delivery transport (SMTP,
// provider API) is an external collaborator; this package only decides what
// gets sent and which token URL it carries.
type Mailer interface {
	// SendAccountActivation dispatches the signup mail carrying the
	// activation link.
	SendAccountActivation(ctx context.Context, user *User, activationURL string) error

	// SendPasswordReset dispatches the reset mail carrying the reset link.
	SendPasswordReset(ctx context.Context, user *User, resetURL string) error
}

// LogMailer writes outgoing mail to the structured log instead of a wire.
// It is the development/test implementation; production wiring swaps in a
// real transport behind the same interface.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer constructs a [LogMailer].
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendAccountActivation logs the activation mail. The URL contains the
// plaintext token, so this implementation must never run with a production
// log sink.
func (mailer *LogMailer) SendAccountActivation(ctx context.Context, user *User, activationURL string) error {
	mailer.logger.InfoContext(ctx, "mail_account_activation",
		slog.String("to", user.Email),
		slog.String("url", activationURL),
	)
	return nil
}

// SendPasswordReset logs the reset mail.
func (mailer *LogMailer) SendPasswordReset(ctx context.Context, user *User, resetURL string) error {
	mailer.logger.InfoContext(ctx, "mail_password_reset",
		slog.String("to", user.Email),
		slog.String("url", resetURL),
	)
	return nil
}

// # Link Construction

// activationURL renders the clickable link embedded in the signup mail:
// {base}/account_activations/{token}/edit?email={email}.
func activationURL(baseURL string, user *User) string {
	return baseURL + "/account_activations/" + url.PathEscape(user.ActivationToken) +
		"/edit?email=" + url.QueryEscape(user.Email)
}

// resetURL renders the clickable link embedded in the reset mail:
// {base}/password_resets/{token}/edit?email={email}.
func resetURL(baseURL string, user *User) string {
	return baseURL + "/password_resets/" + url.PathEscape(user.ResetToken) +
		"/edit?email=" + url.QueryEscape(user.Email)
}
