// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/khayashi/sasayaki/internal/platform/apperr"
	"github.com/khayashi/sasayaki/internal/platform/constants"
	"github.com/khayashi/sasayaki/internal/platform/csrf"
	requestutil "github.com/khayashi/sasayaki/internal/platform/request"
	"github.com/khayashi/sasayaki/internal/platform/respond"
	"github.com/khayashi/sasayaki/internal/platform/sec"
	"github.com/khayashi/sasayaki/internal/platform/session"
)

// Handler exposes the auth and account endpoints.
type Handler struct {
	service *Service
	signer  *sec.CookieSigner
	secure  bool
}

// NewHandler constructs the account [Handler]. secure controls the Secure
// attribute on the persistent-login cookies.
func NewHandler(service *Service, signer *sec.CookieSigner, secure bool) *Handler {
	return &Handler{service: service, signer: signer, secure: secure}
}

// Routes mounts every account endpoint on a fresh router.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/login", handler.NewSession)
	router.Post("/login", handler.CreateSession)
	router.Post("/logout", handler.DestroySession)

	router.Get("/signup", handler.NewUser)
	router.Post("/users", handler.CreateUser)
	router.Get("/users/{userID}", handler.ShowUser)

	router.Group(func(protected chi.Router) {
		protected.Use(RequireLogin)
		protected.Get("/users/{userID}/edit", handler.EditUser)
		protected.Patch("/users/{userID}", handler.UpdateUser)
		protected.Delete("/users/{userID}", handler.DeleteUser)
	})

	router.Get("/account_activations/{token}/edit", handler.ActivateUser)

	router.Get("/password_resets/new", handler.NewPasswordReset)
	router.Post("/password_resets", handler.CreatePasswordReset)
	router.Get("/password_resets/{token}/edit", handler.EditPasswordReset)
	router.Patch("/password_resets/{token}", handler.UpdatePasswordReset)

	return router
}

// formPage is the payload backing a client-rendered form: the CSRF token to
// embed and any pending flash messages.
type formPage struct {
	CSRFToken string            `json:"csrf_token"`
	Flash     map[string]string `json:"flash,omitempty"`
}

// renderForm emits the token + flash payload for a GET form page.
func renderForm(writer http.ResponseWriter, request *http.Request) {
	token, err := csrf.TokenForSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sess := session.FromContext(request.Context())
	flash, err := sess.PopFlash(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, formPage{CSRFToken: token, Flash: flash})
}

// # Sessions

// NewSession renders the login form.
func (handler *Handler) NewSession(writer http.ResponseWriter, request *http.Request) {
	renderForm(writer, request)
}

// CreateSession authenticates the posted credentials, rotates the session
// id, and optionally issues the persistent-login cookie pair.
func (handler *Handler) CreateSession(writer http.ResponseWriter, request *http.Request) {
	if err := requestutil.ParseForm(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctx := request.Context()
	user, err := handler.service.Login(ctx,
		requestutil.FormValue(request, "session", "email"),
		requestutil.FormValue(request, "session", "password"),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sess := session.FromContext(ctx)
	if err := sess.Regenerate(ctx); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := sess.LogIn(ctx, user.ID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if requestutil.FormValue(request, "session", "remember_me") == "1" {
		if err := handler.rememberUser(writer, request, user); err != nil {
			respond.Error(writer, request, err)
			return
		}
	} else {
		if err := handler.forgetUser(writer, request, user); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	target, err := sess.ConsumeForwardingURL(ctx)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if target == "" {
		target = "/users/" + user.ID
	}
	respond.Redirect(writer, request, target)
}

// DestroySession logs the browser out. It is idempotent: logging out an
// already-anonymous session still succeeds and redirects home.
func (handler *Handler) DestroySession(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	if user := CurrentUser(ctx); user != nil {
		if err := handler.forgetUser(writer, request, user); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	sess := session.FromContext(ctx)
	if err := sess.Destroy(ctx); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Redirect(writer, request, "/")
}

// rememberUser persists a fresh remember digest and writes the two
// long-lived cookies: the signed user id and the plaintext remember token.
func (handler *Handler) rememberUser(writer http.ResponseWriter, request *http.Request, user *User) error {
	if err := handler.service.Remember(request.Context(), user); err != nil {
		return err
	}

	signedID, err := handler.signer.Sign(user.ID, constants.PermanentCookieMaxAge)
	if err != nil {
		return err
	}

	handler.writePersistentCookie(writer, constants.UserIDCookieName, signedID)
	handler.writePersistentCookie(writer, constants.RememberTokenCookieName, user.RememberToken)
	return nil
}

// forgetUser clears the remember digest and expires both cookies.
func (handler *Handler) forgetUser(writer http.ResponseWriter, request *http.Request, user *User) error {
	if err := handler.service.Forget(request.Context(), user); err != nil {
		return err
	}
	handler.expireCookie(writer, constants.UserIDCookieName)
	handler.expireCookie(writer, constants.RememberTokenCookieName)
	return nil
}

func (handler *Handler) writePersistentCookie(writer http.ResponseWriter, name, value string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(constants.PermanentCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   handler.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (handler *Handler) expireCookie(writer http.ResponseWriter, name string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   handler.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// # Users

// NewUser renders the signup form.
func (handler *Handler) NewUser(writer http.ResponseWriter, request *http.Request) {
	renderForm(writer, request)
}

// CreateUser enrolls a new account and points the user at their inbox.
func (handler *Handler) CreateUser(writer http.ResponseWriter, request *http.Request) {
	if err := requestutil.ParseForm(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctx := request.Context()
	_, err := handler.service.Signup(ctx, SignupInput{
		Name:                 requestutil.FormValue(request, "user", "name"),
		Email:                requestutil.FormValue(request, "user", "email"),
		Password:             requestutil.FormValue(request, "user", "password"),
		PasswordConfirmation: requestutil.FormValue(request, "user", "passwordConfirmation"),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sess := session.FromContext(ctx)
	if err := sess.Flash(ctx, session.FlashSuccess, "Please check your email to activate your account."); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Redirect(writer, request, "/")
}

// ShowUser renders a public profile.
func (handler *Handler) ShowUser(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.service.FindByID(request.Context(), requestutil.Param(request, "userID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

// EditUser renders the profile edit form, owner only.
func (handler *Handler) EditUser(writer http.ResponseWriter, request *http.Request) {
	if _, err := handler.requireOwner(request); err != nil {
		respond.Error(writer, request, err)
		return
	}
	renderForm(writer, request)
}

// UpdateUser applies profile changes, owner only.
func (handler *Handler) UpdateUser(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.requireOwner(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requestutil.ParseForm(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctx := request.Context()
	updated, err := handler.service.UpdateProfile(ctx, user, UpdateProfileInput{
		Name:  requestutil.FormValue(request, "user", "name"),
		Email: requestutil.FormValue(request, "user", "email"),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sess := session.FromContext(ctx)
	if err := sess.Flash(ctx, session.FlashSuccess, "Profile updated"); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Redirect(writer, request, "/users/"+updated.ID)
}

// DeleteUser removes the account and ends the session, owner only.
func (handler *Handler) DeleteUser(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.requireOwner(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctx := request.Context()
	if err := handler.service.Delete(ctx, user); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.expireCookie(writer, constants.UserIDCookieName)
	handler.expireCookie(writer, constants.RememberTokenCookieName)

	sess := session.FromContext(ctx)
	if err := sess.Destroy(ctx); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Redirect(writer, request, "/")
}

// requireOwner resolves the {userID} route parameter and enforces that the
// authenticated user is acting on their own account.
func (handler *Handler) requireOwner(request *http.Request) (*User, error) {
	user, err := handler.service.FindByID(request.Context(), requestutil.Param(request, "userID"))
	if err != nil {
		return nil, err
	}
	if !IsCurrentUser(request.Context(), user) {
		return nil, apperr.Forbidden("You are not allowed to modify this account")
	}
	return user, nil
}

// # Account Activation

// ActivateUser consumes the emailed activation link. A valid link proves
// email ownership, so the user is logged in on the spot; any failure flashes
// a generic message and goes home.
func (handler *Handler) ActivateUser(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	sess := session.FromContext(ctx)

	user, err := handler.service.Activate(ctx,
		requestutil.QueryValue(request, "email"),
		requestutil.Param(request, "token"),
	)
	if err != nil {
		if !errors.Is(err, ErrInvalidActivation) {
			respond.Error(writer, request, err)
			return
		}
		_ = sess.Flash(ctx, session.FlashDanger, ErrInvalidActivation.Message)
		respond.Redirect(writer, request, "/")
		return
	}

	if err := sess.Regenerate(ctx); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := sess.LogIn(ctx, user.ID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_ = sess.Flash(ctx, session.FlashSuccess, "Account activated!")
	respond.Redirect(writer, request, "/users/"+user.ID)
}

// # Password Resets

// NewPasswordReset renders the forgot-password form.
func (handler *Handler) NewPasswordReset(writer http.ResponseWriter, request *http.Request) {
	renderForm(writer, request)
}

// CreatePasswordReset kicks off the reset flow. The confirmation is the same
// whether or not the email exists.
func (handler *Handler) CreatePasswordReset(writer http.ResponseWriter, request *http.Request) {
	if err := requestutil.ParseForm(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctx := request.Context()
	email := requestutil.FormValue(request, "password_reset", "email")
	if email == "" {
		respond.Error(writer, request, apperr.ValidationError("Validation failed",
			apperr.FieldError{Field: "email", Message: "can't be blank"}))
		return
	}

	if err := handler.service.RequestPasswordReset(ctx, email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	sess := session.FromContext(ctx)
	if err := sess.Flash(ctx, session.FlashSuccess, "Email sent with password reset instructions"); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Redirect(writer, request, "/")
}

// EditPasswordReset validates the emailed link before the client renders the
// new-password form. Expired links bounce back to the request form; invalid
// ones go home.
func (handler *Handler) EditPasswordReset(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	sess := session.FromContext(ctx)

	_, err := handler.service.AuthorizePasswordReset(ctx,
		requestutil.QueryValue(request, "email"),
		requestutil.Param(request, "token"),
	)
	switch {
	case err == nil:
		renderForm(writer, request)
	case errors.Is(err, ErrResetExpired):
		_ = sess.Flash(ctx, session.FlashDanger, ErrResetExpired.Message)
		respond.Redirect(writer, request, "/password_resets/new")
	case errors.Is(err, ErrInvalidReset):
		_ = sess.Flash(ctx, session.FlashDanger, ErrInvalidReset.Message)
		respond.Redirect(writer, request, "/")
	default:
		respond.Error(writer, request, err)
	}
}

// UpdatePasswordReset performs the password change and logs the user in.
func (handler *Handler) UpdatePasswordReset(writer http.ResponseWriter, request *http.Request) {
	if err := requestutil.ParseForm(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctx := request.Context()
	sess := session.FromContext(ctx)

	user, err := handler.service.CompletePasswordReset(ctx, ResetPasswordInput{
		Email:                requestutil.FormValue(request, "user", "email"),
		Token:                requestutil.Param(request, "token"),
		Password:             requestutil.FormValue(request, "user", "password"),
		PasswordConfirmation: requestutil.FormValue(request, "user", "passwordConfirmation"),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrResetExpired):
			_ = sess.Flash(ctx, session.FlashDanger, ErrResetExpired.Message)
			respond.Redirect(writer, request, "/password_resets/new")
		case errors.Is(err, ErrInvalidReset):
			_ = sess.Flash(ctx, session.FlashDanger, ErrInvalidReset.Message)
			respond.Redirect(writer, request, "/")
		default:
			respond.Error(writer, request, err)
		}
		return
	}

	if err := sess.Regenerate(ctx); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := sess.LogIn(ctx, user.ID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_ = sess.Flash(ctx, session.FlashSuccess, "Password has been reset.")
	respond.Redirect(writer, request, "/users/"+user.ID)
}
