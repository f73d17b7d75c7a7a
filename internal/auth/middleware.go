// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/newsroom/internal/logging"
)

type contextKey string

const subjectContextKey contextKey = "subject"

var (
	errMissingToken   = errors.New("authentication required")
	errMalformedToken = errors.New("authorization header must be 'Bearer <token>'")
)

// Subject is the authenticated caller.
type Subject struct {
	ID   string
	Role string
}

// WithSubject stores s in ctx.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	ctx = context.WithValue(ctx, subjectContextKey, s)
	return logging.ContextWithSubjectID(ctx, s.ID)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	s, ok := ctx.Value(subjectContextKey).(*Subject)
	return s, ok && s != nil
}

// SubjectID returns the authenticated subject ID or "".
func SubjectID(ctx context.Context) string {
	if s, ok := SubjectFromContext(ctx); ok {
		return s.ID
	}
	return ""
}

// ErrorResponder writes an authentication failure.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Middleware extracts the subject from a bearer token.
type Middleware struct {
	manager *JWTManager
	mode    string
	onError ErrorResponder
}

// NewMiddleware creates the middleware. manager may be nil in ModeNone.
func NewMiddleware(manager *JWTManager, mode string, onError ErrorResponder) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return &Middleware{manager: manager, mode: mode, onError: onError}
}

// Authenticate is chi-compatible middleware.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode == ModeNone || m.manager == nil {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			if m.mode == ModeRequired {
				w.Header().Set("WWW-Authenticate", `Bearer realm="newsroom"`)
				m.onError(w, r, errMissingToken)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			m.onError(w, r, errMalformedToken)
			return
		}

		claims, err := m.manager.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("rejected bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="newsroom", error="invalid_token"`)
			m.onError(w, r, err)
			return
		}

		ctx := WithSubject(r.Context(), &Subject{ID: claims.Subject, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
