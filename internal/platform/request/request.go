// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and the
Rails-style nested form field convention (session[email], user[password])
used by the form-driven auth flows.
*/
package requestutil

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/khayashi/sasayaki/internal/platform/validate"
)

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
ParseForm eagerly parses the urlencoded body, mapping decode failures to the
standard validation error.
*/
func ParseForm(request *http.Request) error {
	if err := request.ParseForm(); err != nil {
		return validate.ErrInvalidForm
	}
	return nil
}

/*
FormValue reads a nested form field in the scope[field] convention, e.g.
FormValue(r, "session", "email") reads "session[email]". Falls back to the
bare field name for clients that post flat payloads.
*/
func FormValue(request *http.Request, scope, field string) string {
	if value := request.PostFormValue(fmt.Sprintf("%s[%s]", scope, field)); value != "" {
		return value
	}
	return request.PostFormValue(field)
}

/*
QueryValue reads a query-string parameter.
*/
func QueryValue(request *http.Request, name string) string {
	return request.URL.Query().Get(name)
}
