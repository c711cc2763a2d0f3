// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret-that-is-long-enough")

	token, err := v.Sign("user-42", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	userID, err := v.UserID("Bearer " + token)
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("got user %q, want user-42", userID)
	}
}

func TestVerifierNoToken(t *testing.T) {
	v := NewVerifier("secret")

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer"} {
		if _, err := v.UserID(header); !errors.Is(err, ErrNoToken) {
			t.Errorf("UserID(%q) err = %v, want ErrNoToken", header, err)
		}
	}
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a")
	verifier := NewVerifier("secret-b")

	token, err := issuer.Sign("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := verifier.UserID("Bearer " + token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifierRejectsExpired(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Sign("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := v.UserID("Bearer " + token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret")
	token, _ := v.Sign("user-7", time.Hour)

	var gotUser string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	// Authenticated request
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if gotUser != "user-7" {
		t.Errorf("authenticated request: got user %q, want user-7", gotUser)
	}

	// Anonymous request passes through
	gotUser = "sentinel"
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if gotUser != "" {
		t.Errorf("anonymous request: got user %q, want empty", gotUser)
	}

	// Garbage token is rejected
	rec := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d, want 401", rec.Code)
	}
}
