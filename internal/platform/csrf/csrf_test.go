// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package csrf_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khayashi/sasayaki/internal/platform/constants"
	"github.com/khayashi/sasayaki/internal/platform/csrf"
	"github.com/khayashi/sasayaki/internal/platform/session"
)

/*
TestCreateAndVerifyToken covers token derivation: every token from one
secret verifies, distinct tokens differ, and any tampering fails closed.
*/
func TestCreateAndVerifyToken(t *testing.T) {
	const secret = "per-session-secret"

	first, err := csrf.CreateToken(secret)
	require.NoError(t, err)
	second, err := csrf.CreateToken(secret)
	require.NoError(t, err)

	// Salted derivation: concurrent form renders never collide.
	assert.NotEqual(t, first, second)
	assert.True(t, csrf.VerifyToken(secret, first))
	assert.True(t, csrf.VerifyToken(secret, second))

	tests := []struct {
		name  string
		token string
	}{
		{"wrong_secret", mustToken(t, "a-different-secret")},
		{"empty_token", ""},
		{"no_separator", strings.ReplaceAll(first, ".", "")},
		{"truncated_mac", first[:len(first)-4]},
		{"swapped_salt", "AAAAAAAA." + strings.SplitN(first, ".", 2)[1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, csrf.VerifyToken(secret, tt.token))
		})
	}

	assert.False(t, csrf.VerifyToken("", first), "empty secret never verifies")
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := csrf.CreateToken(secret)
	require.NoError(t, err)
	return token
}

// guardHarness wires the Guard behind a real session over miniredis.
type guardHarness struct {
	manager *session.Manager
	handler http.Handler
	reached *bool
}

func newGuardHarness(t *testing.T) *guardHarness {
	t.Helper()

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := session.NewManager(client, false)

	reached := false
	inner := http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		reached = true
		writer.WriteHeader(http.StatusOK)
	})

	return &guardHarness{
		manager: manager,
		handler: manager.Middleware(csrf.Guard(inner)),
		reached: &reached,
	}
}

// establish creates a session with a CSRF secret and returns its cookie and
// a token derived from that secret.
func (harness *guardHarness) establish(t *testing.T) (*http.Cookie, string) {
	t.Helper()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/form", nil)
	sess, err := harness.manager.Load(context.Background(), recorder, request)
	require.NoError(t, err)

	secret, err := sess.CSRFSecret(context.Background())
	require.NoError(t, err)
	token, err := csrf.CreateToken(secret)
	require.NoError(t, err)

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == constants.SessionCookieName {
			return cookie, token
		}
	}
	t.Fatal("session cookie not set")
	return nil, ""
}

/*
TestGuard exercises the middleware: safe methods pass, valid tokens pass via
form field or header, and everything else is a generic 403 that never
reaches the handler.
*/
func TestGuard(t *testing.T) {
	t.Run("safe_method_passes", func(t *testing.T) {
		harness := newGuardHarness(t)
		recorder := httptest.NewRecorder()
		harness.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.True(t, *harness.reached)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("valid_form_token_passes", func(t *testing.T) {
		harness := newGuardHarness(t)
		cookie, token := harness.establish(t)

		form := url.Values{constants.CSRFFieldName: {token}}
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		request.AddCookie(cookie)

		recorder := httptest.NewRecorder()
		harness.handler.ServeHTTP(recorder, request)

		assert.True(t, *harness.reached)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("valid_header_token_passes", func(t *testing.T) {
		harness := newGuardHarness(t)
		cookie, token := harness.establish(t)

		request := httptest.NewRequest(http.MethodPost, "/", nil)
		request.Header.Set(constants.CSRFHeaderName, token)
		request.AddCookie(cookie)

		recorder := httptest.NewRecorder()
		harness.handler.ServeHTTP(recorder, request)

		assert.True(t, *harness.reached)
	})

	t.Run("missing_token_is_403", func(t *testing.T) {
		harness := newGuardHarness(t)
		cookie, _ := harness.establish(t)

		request := httptest.NewRequest(http.MethodPost, "/", nil)
		request.AddCookie(cookie)

		recorder := httptest.NewRecorder()
		harness.handler.ServeHTTP(recorder, request)

		assert.False(t, *harness.reached)
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("session_without_secret_is_403", func(t *testing.T) {
		harness := newGuardHarness(t)

		// Fresh session, no form ever rendered: nothing to verify against.
		request := httptest.NewRequest(http.MethodPost, "/", nil)
		request.Header.Set(constants.CSRFHeaderName, "whatever.whatever")

		recorder := httptest.NewRecorder()
		harness.handler.ServeHTTP(recorder, request)

		assert.False(t, *harness.reached)
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("token_for_other_session_is_403", func(t *testing.T) {
		harness := newGuardHarness(t)
		cookie, _ := harness.establish(t)
		_, foreignToken := harness.establish(t)

		request := httptest.NewRequest(http.MethodPost, "/", nil)
		request.Header.Set(constants.CSRFHeaderName, foreignToken)
		request.AddCookie(cookie)

		recorder := httptest.NewRecorder()
		harness.handler.ServeHTTP(recorder, request)

		assert.False(t, *harness.reached)
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})
}
