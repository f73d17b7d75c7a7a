// Newsroom - Personalized News Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/newsroom

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&Config{JWTSecret: testSecret, Issuer: "newsroom-test", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTManager(&Config{JWTSecret: "short", TokenTTL: time.Hour}); err == nil {
		t.Error("expected error for short secret")
	}
	if m := newTestManager(t); m == nil {
		t.Error("NewJWTManager() returned nil manager")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none needs no secret", Config{Mode: ModeNone}, false},
		{"optional with secret", Config{Mode: ModeOptional, JWTSecret: testSecret, TokenTTL: time.Hour}, false},
		{"required without secret", Config{Mode: ModeRequired, TokenTTL: time.Hour}, true},
		{"unknown mode", Config{Mode: "basic", JWTSecret: testSecret, TokenTTL: time.Hour}, true},
		{"zero ttl", Config{Mode: ModeRequired, JWTSecret: testSecret}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	token, err := m.GenerateToken("reader-42", "reader")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "reader-42" || claims.Role != "reader" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	expired := newTestManager(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.GenerateToken("u1", "")
	if err != nil {
		t.Fatal(err)
	}

	otherIssuer, err := NewJWTManager(&Config{JWTSecret: testSecret, Issuer: "someone-else", TokenTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	wrongIssuer, err := otherIssuer.GenerateToken("u1", "")
	if err != nil {
		t.Fatal(err)
	}

	noSubject, err := m.GenerateToken("", "")
	if err != nil {
		t.Fatal(err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"expired":      expiredToken,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"alg none":     unsigned,
		"garbage":      "not.a.token",
		"tampered":     tamper(t, m),
	}
	for name, token := range tests {
		if _, err := m.ValidateToken(token); err == nil {
			t.Errorf("%s: expected rejection", name)
		}
	}
}

func tamper(t *testing.T, m *JWTManager) string {
	t.Helper()
	token, err := m.GenerateToken("u1", "reader")
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	return parts[0] + "." + parts[1] + "." + string(sig)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	valid, err := m.GenerateToken("reader-7", "reader")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		mode        string
		header      string
		wantStatus  int
		wantSubject string
	}{
		{"optional anonymous", ModeOptional, "", http.StatusOK, ""},
		{"optional with token", ModeOptional, "Bearer " + valid, http.StatusOK, "reader-7"},
		{"lowercase scheme", ModeOptional, "bearer " + valid, http.StatusOK, "reader-7"},
		{"optional with bad token", ModeOptional, "Bearer nope", http.StatusUnauthorized, ""},
		{"basic scheme", ModeOptional, "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"required anonymous", ModeRequired, "", http.StatusUnauthorized, ""},
		{"required with token", ModeRequired, "Bearer " + valid, http.StatusOK, "reader-7"},
		{"none ignores header", ModeNone, "Bearer nope", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotSubject string
			handler := NewMiddleware(m, tt.mode, nil).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSubject = SubjectID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotSubject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", gotSubject, tt.wantSubject)
			}
		})
	}
}
