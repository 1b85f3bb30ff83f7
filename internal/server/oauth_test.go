package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func newTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		if r.Form.Get("code_verifier") != "verifier" {
			t.Errorf("expected code_verifier to be forwarded, got %q", r.Form.Get("code_verifier"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600,"id_token":"it"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOAuthHandler(t *testing.T) *OAuthHandler {
	t.Helper()
	srv := newTokenEndpoint(t)
	config := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://127.0.0.1:8080/oauth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return NewOAuthHandler(config, "state-1", oauth2.VerifierOption("verifier"))
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Routes", func(t *testing.T) {
		h := newTestOAuthHandler(t)
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "/oauth/callback" {
			t.Errorf("expected [/oauth/callback], got %v", routes)
		}
	})

	t.Run("Success", func(t *testing.T) {
		h := newTestOAuthHandler(t)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=state-1&code=good-code", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Signed in") {
			t.Error("expected signed in page")
		}

		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("expected no error, got %v", result.Error())
		}
		if result.Token.AccessToken != "at" {
			t.Errorf("expected access token at, got %s", result.Token.AccessToken)
		}
		if id, _ := result.Token.Extra("id_token").(string); id != "it" {
			t.Errorf("expected id_token it, got %q", id)
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		h := newTestOAuthHandler(t)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=forged&code=good-code", nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected state error")
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		h := newTestOAuthHandler(t)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=state-1&error=access_denied", nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
		result := <-h.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", result.Error())
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		h := newTestOAuthHandler(t)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=state-1&code=bad-code", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected exchange error")
		}
	})

	t.Run("Replay", func(t *testing.T) {
		h := newTestOAuthHandler(t)
		req := "/oauth/callback?state=state-1&code=good-code"

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, req, nil))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, req, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("Fail", func(t *testing.T) {
		h := newTestOAuthHandler(t)
		cause := errors.New("cancelled")

		h.Fail(cause)
		h.Fail(errors.New("ignored"))

		result, ok := <-h.Result()
		if !ok || !errors.Is(result.Error(), cause) {
			t.Errorf("expected first failure, got %v", result.Error())
		}
		if _, ok := <-h.Result(); ok {
			t.Error("expected result channel to be closed")
		}
	})
}

func TestCallbackPath(t *testing.T) {
	tests := []struct {
		redirect string
		want     string
	}{
		{"http://127.0.0.1:8080/oauth/callback", "/oauth/callback"},
		{"http://127.0.0.1:8080", "/callback"},
		{"http://127.0.0.1:8080/", "/callback"},
		{"", "/callback"},
		{"://bad", "/callback"},
	}

	for _, tt := range tests {
		if got := callbackPath(tt.redirect); got != tt.want {
			t.Errorf("callbackPath(%q): expected %s, got %s", tt.redirect, tt.want, got)
		}
	}
}
