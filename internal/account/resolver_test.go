// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khayashi/sasayaki/internal/account"
)

/*
TestCurrentUser_ContextAccessors covers the memoized identity helpers.
*/
func TestCurrentUser_ContextAccessors(t *testing.T) {
	user := &account.User{ID: "0198f9a0-0000-7000-8000-000000000001"}
	other := &account.User{ID: "0198f9a0-0000-7000-8000-000000000002"}

	t.Run("empty_context", func(t *testing.T) {
		ctx := context.Background()
		assert.Nil(t, account.CurrentUser(ctx))
		assert.False(t, account.HasLoggedIn(ctx))
		assert.False(t, account.IsCurrentUser(ctx, user))
	})

	t.Run("with_user", func(t *testing.T) {
		ctx := account.WithCurrentUser(context.Background(), user)
		assert.Equal(t, user, account.CurrentUser(ctx))
		assert.True(t, account.HasLoggedIn(ctx))
		assert.True(t, account.IsCurrentUser(ctx, user))
		assert.False(t, account.IsCurrentUser(ctx, other))
		assert.False(t, account.IsCurrentUser(ctx, nil))
	})

	t.Run("explicit_nil_user", func(t *testing.T) {
		ctx := account.WithCurrentUser(context.Background(), nil)
		assert.Nil(t, account.CurrentUser(ctx))
		assert.False(t, account.HasLoggedIn(ctx))
	})
}

/*
TestRequireLogin_Anonymous redirects to the login page; an authenticated
context passes straight through.
*/
func TestRequireLogin_Anonymous(t *testing.T) {
	var reached bool
	protected := account.RequireLogin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	t.Run("anonymous_is_redirected", func(t *testing.T) {
		reached = false
		recorder := httptest.NewRecorder()
		protected.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/1/edit", nil))

		assert.False(t, reached)
		assert.Equal(t, http.StatusFound, recorder.Code)
		assert.Equal(t, "/login", recorder.Header().Get("Location"))
	})

	t.Run("authenticated_passes", func(t *testing.T) {
		reached = false
		request := httptest.NewRequest(http.MethodGet, "/users/1/edit", nil)
		ctx := account.WithCurrentUser(request.Context(), &account.User{ID: "u1"})
		recorder := httptest.NewRecorder()
		protected.ServeHTTP(recorder, request.WithContext(ctx))

		assert.True(t, reached)
	})
}
