// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

/*
Package session implements server-side browser sessions backed by Redis.

The client holds only an opaque session id in a cookie; all session state
(logged-in user id, CSRF secret, friendly-forwarding URL, one-shot flash
messages) lives in a Redis hash keyed by that id and expires after an idle
TTL.

# Architecture

  - Manager: connection-level factory, owns the Redis client and cookie policy.
  - Session: per-request handle created by the middleware; write-through,
    every mutation is its own Redis command (the row update is the only
    concurrency primitive relied upon).
  - Regenerate: issues a fresh id while carrying the data over — called on
    every privilege change to defeat session fixation.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/khayashi/sasayaki/internal/platform/constants"
	"github.com/khayashi/sasayaki/internal/platform/ctxkey"
	"github.com/khayashi/sasayaki/internal/platform/sec"
)

// Hash fields inside a session record.
const (
	fieldUserID        = "user_id"
	fieldCSRFSecret    = "csrf_secret"
	fieldForwardingURL = "forwarding_url"
	fieldFlashSuccess  = "flash_success"
	fieldFlashDanger   = "flash_danger"
)

// Flash levels understood by the render layer.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
)

// Manager creates and loads sessions. One instance serves the whole process.
type Manager struct {
	client *redis.Client
	secure bool
}

// NewManager constructs a session [Manager].
//
// secure controls the Secure attribute on the session cookie and should be
// true outside development.
func NewManager(client *redis.Client, secure bool) *Manager {
	return &Manager{client: client, secure: secure}
}

// Session is the per-request handle to one browser session.
//
// # Concurrency
//
// A Session is bound to a single request's control flow and is not safe for
// concurrent use.
type Session struct {
	manager *Manager
	writer  http.ResponseWriter
	id      string
}

// Load returns the session referenced by the request cookie, creating a new
// empty session (and setting the cookie) when none exists or the referenced
// record has expired.
func (manager *Manager) Load(ctx context.Context, writer http.ResponseWriter, request *http.Request) (*Session, error) {
	session := &Session{manager: manager, writer: writer}

	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		exists, err := manager.client.Exists(ctx, sessionKey(cookie.Value)).Result()
		if err != nil {
			return nil, fmt.Errorf("session_load_failed: %w", err)
		}
		if exists == 1 {
			session.id = cookie.Value
			// Sliding expiry: every request keeps the session alive.
			if err := manager.client.Expire(ctx, sessionKey(session.id), constants.SessionTTL).Err(); err != nil {
				return nil, fmt.Errorf("session_touch_failed: %w", err)
			}
			return session, nil
		}
	}

	return session.create(ctx)
}

// create assigns a fresh id, materializes an empty record, and issues the cookie.
func (session *Session) create(ctx context.Context) (*Session, error) {
	id, err := sec.NewToken(constants.SecureTokenLength)
	if err != nil {
		return nil, err
	}
	session.id = id

	// A placeholder field materializes the hash so Exists finds it before
	// any real value is written.
	if err := session.manager.client.HSet(ctx, session.key(), "created", "1").Err(); err != nil {
		return nil, fmt.Errorf("session_create_failed: %w", err)
	}
	if err := session.manager.client.Expire(ctx, session.key(), constants.SessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("session_create_failed: %w", err)
	}

	session.writeCookie(session.id, int(constants.SessionTTL.Seconds()))
	return session, nil
}

// ID exposes the opaque session identifier (used by tests and logging only).
func (session *Session) ID() string { return session.id }

// # Identity

// LogIn binds the session to a user id.
func (session *Session) LogIn(ctx context.Context, userID string) error {
	return session.set(ctx, fieldUserID, userID)
}

// UserID returns the bound user id, or "" for an anonymous session.
func (session *Session) UserID(ctx context.Context) (string, error) {
	return session.get(ctx, fieldUserID)
}

// Regenerate swaps the session id while keeping the stored data, defeating
// session fixation. Callers must invoke it before granting a session any new
// privilege (login, activation, password reset).
//
// A regeneration failure must propagate — continuing with the old id would
// silently keep the fixated session alive.
func (session *Session) Regenerate(ctx context.Context) error {
	newID, err := sec.NewToken(constants.SecureTokenLength)
	if err != nil {
		return err
	}

	err = session.manager.client.Rename(ctx, session.key(), sessionKey(newID)).Err()
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("session_regenerate_failed: %w", err)
	}
	if err := session.manager.client.Expire(ctx, sessionKey(newID), constants.SessionTTL).Err(); err != nil {
		return fmt.Errorf("session_regenerate_failed: %w", err)
	}

	session.id = newID
	session.writeCookie(newID, int(constants.SessionTTL.Seconds()))
	return nil
}

// Destroy deletes the server-side record and expires the cookie. Destroying
// an already-destroyed session is a no-op, which keeps logout idempotent.
func (session *Session) Destroy(ctx context.Context) error {
	if err := session.manager.client.Del(ctx, session.key()).Err(); err != nil {
		return fmt.Errorf("session_destroy_failed: %w", err)
	}
	session.writeCookie("", -1)
	return nil
}

// # Friendly Forwarding

// StoreForwardingURL remembers the originally requested URL so a post-login
// redirect can resume it. Only GET targets are stored — replaying unsafe
// methods after login would be a CSRF-shaped footgun.
func (session *Session) StoreForwardingURL(ctx context.Context, request *http.Request) error {
	if request.Method != http.MethodGet {
		return nil
	}
	return session.set(ctx, fieldForwardingURL, request.URL.RequestURI())
}

// ConsumeForwardingURL returns the stored URL and clears it, so the redirect
// fires at most once.
func (session *Session) ConsumeForwardingURL(ctx context.Context) (string, error) {
	url, err := session.get(ctx, fieldForwardingURL)
	if err != nil || url == "" {
		return "", err
	}
	if err := session.manager.client.HDel(ctx, session.key(), fieldForwardingURL).Err(); err != nil {
		return "", fmt.Errorf("session_forwarding_clear_failed: %w", err)
	}
	return url, nil
}

// # CSRF Secret

// CSRFSecret returns the per-session CSRF secret, creating it lazily on
// first use. The secret is never regenerated for the life of the session.
func (session *Session) CSRFSecret(ctx context.Context) (string, error) {
	secret, err := session.get(ctx, fieldCSRFSecret)
	if err != nil {
		return "", err
	}
	if secret != "" {
		return secret, nil
	}

	secret, err = sec.NewToken(constants.SecureTokenLength)
	if err != nil {
		return "", err
	}
	if err := session.set(ctx, fieldCSRFSecret, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// PeekCSRFSecret returns the stored secret without creating one. Used by the
// guard: a missing secret is a rejection, not a lazy initialization point.
func (session *Session) PeekCSRFSecret(ctx context.Context) (string, error) {
	return session.get(ctx, fieldCSRFSecret)
}

// # Flash Messages

// Flash stores a one-shot message at the given level (success or danger).
func (session *Session) Flash(ctx context.Context, level, message string) error {
	field := fieldFlashSuccess
	if level == FlashDanger {
		field = fieldFlashDanger
	}
	return session.set(ctx, field, message)
}

// PopFlash returns all pending flash messages and clears them.
func (session *Session) PopFlash(ctx context.Context) (map[string]string, error) {
	flashes := make(map[string]string)

	for level, field := range map[string]string{
		FlashSuccess: fieldFlashSuccess,
		FlashDanger:  fieldFlashDanger,
	} {
		message, err := session.get(ctx, field)
		if err != nil {
			return nil, err
		}
		if message == "" {
			continue
		}
		flashes[level] = message
		if err := session.manager.client.HDel(ctx, session.key(), field).Err(); err != nil {
			return nil, fmt.Errorf("session_flash_clear_failed: %w", err)
		}
	}

	return flashes, nil
}

// # Internals

func (session *Session) key() string { return sessionKey(session.id) }

func sessionKey(id string) string { return constants.RedisPrefixSession + id }

func (session *Session) get(ctx context.Context, field string) (string, error) {
	value, err := session.manager.client.HGet(ctx, session.key(), field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("session_read_failed: %w", err)
	}
	return value, nil
}

func (session *Session) set(ctx context.Context, field, value string) error {
	if err := session.manager.client.HSet(ctx, session.key(), field, value).Err(); err != nil {
		return fmt.Errorf("session_write_failed: %w", err)
	}
	if err := session.manager.client.Expire(ctx, session.key(), constants.SessionTTL).Err(); err != nil {
		return fmt.Errorf("session_write_failed: %w", err)
	}
	return nil
}

func (session *Session) writeCookie(value string, maxAge int) {
	http.SetCookie(session.writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   session.manager.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isNoSuchKey matches the RENAME error for a missing source key.
func isNoSuchKey(err error) bool {
	return err != nil && err.Error() == "ERR no such key"
}

// # Request Plumbing

// Middleware loads (or creates) the session for every request and stores the
// handle in the request context.
func (manager *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		session, err := manager.Load(request.Context(), writer, request)
		if err != nil {
			http.Error(writer, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		ctx := context.WithValue(request.Context(), ctxkey.KeySession, session)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// FromContext returns the request's session handle, or nil when the
// middleware has not run (only the case in unit tests).
func FromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(ctxkey.KeySession).(*Session)
	return session
}
