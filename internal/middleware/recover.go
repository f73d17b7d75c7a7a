// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/tomtom215/newsroom/internal/logging"
)

// PanicResponder writes the response for a recovered panic.
type PanicResponder func(w http.ResponseWriter, r *http.Request)

// Recoverer turns handler panics into a logged 500. http.ErrAbortHandler is
// re-raised so net/http can abort the connection as intended.
func Recoverer(respond PanicResponder) func(http.Handler) http.Handler {
	if respond == nil {
		respond = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logging.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("recovered from handler panic")
				respond(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
