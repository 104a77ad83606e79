// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account

import (
	"context"
	"net/http"

	"github.com/khayashi/sasayaki/internal/platform/constants"
	"github.com/khayashi/sasayaki/internal/platform/ctxkey"
	"github.com/khayashi/sasayaki/internal/platform/respond"
	"github.com/khayashi/sasayaki/internal/platform/sec"
	"github.com/khayashi/sasayaki/internal/platform/session"
)

// Resolver turns cookies into an authenticated identity, once per request.
//
// Resolution order:
//  1. Session fast path: the session hash already names a user id.
//  2. Persistent-login fallback: a signed user_id cookie plus a remember
//     token whose digest matches; on success the session is upgraded so the
//     next request takes the fast path.
//
// The result (a *User or nil) is memoized in the request context, so
// handlers and middleware share one lookup.
type Resolver struct {
	users  UserRepository
	signer *sec.CookieSigner
}

// NewResolver constructs a [Resolver].
func NewResolver(users UserRepository, signer *sec.CookieSigner) *Resolver {
	return &Resolver{users: users, signer: signer}
}

// Middleware resolves the current user and stores it in the request context.
// Anonymous requests pass through with a nil user; resolution failures never
// block the request.
func (resolver *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		user := resolver.resolve(request.Context(), writer, request)

		ctx := context.WithValue(request.Context(), ctxkey.KeyCurrentUser, user)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// resolve performs the two-step lookup. It returns nil for anonymous or
// unverifiable requests.
func (resolver *Resolver) resolve(ctx context.Context, writer http.ResponseWriter, request *http.Request) *User {
	sess := session.FromContext(request.Context())
	if sess == nil {
		return nil
	}

	if userID, err := sess.UserID(ctx); err == nil && userID != "" {
		user, err := resolver.users.FindByID(ctx, userID)
		if err != nil {
			return nil
		}
		return user
	}

	return resolver.resolveRemembered(ctx, writer, request, sess)
}

// resolveRemembered handles the persistent-login cookie pair. The signed
// user_id cookie proves nothing by itself; the remember token must also
// match the stored digest before the session is upgraded.
func (resolver *Resolver) resolveRemembered(ctx context.Context, writer http.ResponseWriter, request *http.Request, sess *session.Session) *User {
	signedCookie, err := request.Cookie(constants.UserIDCookieName)
	if err != nil || signedCookie.Value == "" {
		return nil
	}

	userID, err := resolver.signer.Verify(signedCookie.Value)
	if err != nil {
		return nil
	}

	user, err := resolver.users.FindByID(ctx, userID)
	if err != nil {
		return nil
	}

	rememberCookie, err := request.Cookie(constants.RememberTokenCookieName)
	if err != nil || !user.IsAuthenticated(TokenRemember, rememberCookie.Value) {
		return nil
	}

	// Mirror the identity into the session so subsequent requests skip the
	// cookie dance.
	if err := sess.LogIn(ctx, user.ID); err != nil {
		return nil
	}

	return user
}

// # Context Accessors

// CurrentUser returns the resolved user for this request, or nil.
func CurrentUser(ctx context.Context) *User {
	user, _ := ctx.Value(ctxkey.KeyCurrentUser).(*User)
	return user
}

// HasLoggedIn reports whether the request carries an authenticated identity.
func HasLoggedIn(ctx context.Context) bool {
	return CurrentUser(ctx) != nil
}

// IsCurrentUser reports whether the resolved identity matches the given user.
func IsCurrentUser(ctx context.Context, user *User) bool {
	current := CurrentUser(ctx)
	return current != nil && user != nil && current.ID == user.ID
}

// WithCurrentUser stores a user in the context. Exposed for tests that
// bypass the middleware.
func WithCurrentUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, ctxkey.KeyCurrentUser, user)
}

// RequireLogin rejects anonymous requests with a flash and a redirect to the
// login page, remembering GET targets for friendly forwarding.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if HasLoggedIn(request.Context()) {
			next.ServeHTTP(writer, request)
			return
		}

		if sess := session.FromContext(request.Context()); sess != nil {
			_ = sess.StoreForwardingURL(request.Context(), request)
			_ = sess.Flash(request.Context(), session.FlashDanger, "Please log in.")
		}
		respond.Redirect(writer, request, "/login")
	})
}
