package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/shared"
	tu "github.com/desertthunder/eventory/internal/testing"
)

const testAudience = "client"

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := shared.RunMigrations(db.DB, shared.DriverSQLite); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func testServerConfig() shared.ServerConfig {
	return shared.ServerConfig{
		Host:          "127.0.0.1",
		Port:          0,
		Environment:   "development",
		SessionSecret: "test-secret",
		SessionMaxAge: 3600,
	}
}

// newTestVerifier accepts tokens signed by a fresh key set for testAudience.
func newTestVerifier(t *testing.T) (*OIDCVerifier, *tu.KeySet) {
	t.Helper()
	keys := tu.NewKeySet(t)
	v, err := NewOIDCVerifier(context.Background(), OIDCConfig{ClientID: testAudience, CertsURL: keys.URL})
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return v, keys
}

func newTestGateway(t *testing.T, config shared.ServerConfig) (*Gateway, *tu.KeySet) {
	t.Helper()
	v, keys := newTestVerifier(t)
	g, err := NewGateway(config, setupTestDB(t), v, log.New(io.Discard))
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}
	return g, keys
}

type apiCall struct {
	method string
	path   string
	body   any
	bearer string
	cookie *http.Cookie
}

func (c apiCall) do(t *testing.T, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) models.Envelope[T] {
	t.Helper()
	var env models.Envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope %q: %v", w.Body.String(), err)
	}
	return env
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("expected %s cookie in response", SessionCookie)
	return nil
}

func TestGatewayAPI(t *testing.T) {
	g, keys := newTestGateway(t, testServerConfig())
	token := keys.IDToken(t, "u1", "u1@example.com", testAudience, time.Hour)
	other := keys.IDToken(t, "u2", "u2@example.com", testAudience, time.Hour)

	t.Run("Health", func(t *testing.T) {
		w := apiCall{method: http.MethodGet, path: "/health"}.do(t, g)
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		if w.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Error("expected nosniff header")
		}
	})

	t.Run("Session", func(t *testing.T) {
		t.Run("Create", func(t *testing.T) {
			w := apiCall{method: http.MethodPost, path: "/api/session", body: models.SessionRequest{IDToken: token}}.do(t, g)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}

			env := decodeEnvelope[models.Session](t, w)
			if !env.Success || env.Data.UID != "u1" {
				t.Errorf("expected u1 session, got %+v", env)
			}

			c := sessionCookie(t, w)
			if !c.HttpOnly || c.Secure || c.MaxAge != 3600 {
				t.Errorf("unexpected cookie %+v", c)
			}

			w = apiCall{method: http.MethodGet, path: "/api/session", cookie: c}.do(t, g)
			if w.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", w.Code)
			}
			if got := decodeEnvelope[models.Session](t, w); got.Data.Email != "u1@example.com" {
				t.Errorf("expected email u1@example.com, got %s", got.Data.Email)
			}
		})

		t.Run("Missing Token", func(t *testing.T) {
			w := apiCall{method: http.MethodPost, path: "/api/session", body: map[string]string{}}.do(t, g)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			if env := decodeEnvelope[any](t, w); env.Success || env.Error == "" {
				t.Errorf("expected failure envelope, got %+v", env)
			}
		})

		t.Run("Expired Token", func(t *testing.T) {
			expired := keys.IDToken(t, "u1", "", testAudience, -time.Minute)
			w := apiCall{method: http.MethodPost, path: "/api/session", body: models.SessionRequest{IDToken: expired}}.do(t, g)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})

		t.Run("Unsigned Token", func(t *testing.T) {
			forged := tu.UnsignedIDToken(t, "victim", "victim@example.com", testAudience, time.Hour)
			w := apiCall{method: http.MethodPost, path: "/api/session", body: models.SessionRequest{IDToken: forged}}.do(t, g)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
			if cookies := w.Result().Cookies(); len(cookies) != 0 {
				t.Errorf("expected no session cookie, got %v", cookies)
			}
		})

		t.Run("Token From Another Key", func(t *testing.T) {
			foreign := tu.NewKeySet(t).IDToken(t, "victim", "victim@example.com", testAudience, time.Hour)
			w := apiCall{method: http.MethodPost, path: "/api/session", body: models.SessionRequest{IDToken: foreign}}.do(t, g)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})

		t.Run("Get Without Cookie", func(t *testing.T) {
			w := apiCall{method: http.MethodGet, path: "/api/session"}.do(t, g)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})

		t.Run("Delete", func(t *testing.T) {
			w := apiCall{method: http.MethodDelete, path: "/api/session"}.do(t, g)
			if w.Code != http.StatusNoContent {
				t.Errorf("expected status 204, got %d", w.Code)
			}
			if c := sessionCookie(t, w); c.MaxAge >= 0 {
				t.Errorf("expected cleared cookie, got %+v", c)
			}
		})
	})

	t.Run("Users", func(t *testing.T) {
		t.Run("Lookup Before Signup", func(t *testing.T) {
			w := apiCall{method: http.MethodGet, path: "/api/users/u1", bearer: token}.do(t, g)
			if w.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", w.Code)
			}
		})

		t.Run("Requires Bearer", func(t *testing.T) {
			w := apiCall{method: http.MethodGet, path: "/api/users/u1"}.do(t, g)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})

		t.Run("Rejects Unsigned Bearer", func(t *testing.T) {
			forged := tu.UnsignedIDToken(t, "victim", "victim@example.com", testAudience, time.Hour)
			w := apiCall{method: http.MethodPost, path: "/api/users", bearer: forged, body: models.SignupForm{Role: models.RoleInfluencer}}.do(t, g)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d: %s", w.Code, w.Body.String())
			}

			w = apiCall{method: http.MethodGet, path: "/api/users/victim", bearer: forged}.do(t, g)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})

		t.Run("Signup", func(t *testing.T) {
			w := apiCall{method: http.MethodPost, path: "/api/users", bearer: token, body: models.SignupForm{Role: models.RoleInfluencer}}.do(t, g)
			if w.Code != http.StatusCreated {
				t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
			}

			user := decodeEnvelope[models.User](t, w).Data
			if user.UID != "u1" || user.Role != models.RoleInfluencer {
				t.Errorf("expected influencer u1, got %+v", user)
			}
			if len(user.CanViewList) != 1 || user.CanViewList[0] != "u1" {
				t.Errorf("expected view list [u1], got %v", user.CanViewList)
			}
			if user.Email != "u1@example.com" {
				t.Errorf("expected provider email, got %s", user.Email)
			}
		})

		t.Run("Duplicate Signup", func(t *testing.T) {
			w := apiCall{method: http.MethodPost, path: "/api/users", bearer: token, body: models.SignupForm{Role: models.RoleParticipant}}.do(t, g)
			if w.Code != http.StatusConflict {
				t.Errorf("expected status 409, got %d", w.Code)
			}
		})

		t.Run("Invalid Role", func(t *testing.T) {
			w := apiCall{method: http.MethodPost, path: "/api/users", bearer: other, body: map[string]string{"role": "admin"}}.do(t, g)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})

		t.Run("Lookup After Signup", func(t *testing.T) {
			w := apiCall{method: http.MethodGet, path: "/api/users/u1", bearer: token}.do(t, g)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if user := decodeEnvelope[models.User](t, w).Data; user.UID != "u1" {
				t.Errorf("expected u1, got %s", user.UID)
			}
		})

		t.Run("Lookup Of Another User", func(t *testing.T) {
			w := apiCall{method: http.MethodGet, path: "/api/users/u1", bearer: other}.do(t, g)
			if w.Code != http.StatusForbidden {
				t.Errorf("expected status 403, got %d", w.Code)
			}
		})

		t.Run("List Is Filtered By Visibility", func(t *testing.T) {
			w := apiCall{method: http.MethodGet, path: "/api/users", bearer: other}.do(t, g)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if users := decodeEnvelope[[]models.User](t, w).Data; len(users) != 0 {
				t.Errorf("expected no visible users, got %d", len(users))
			}

			w = apiCall{method: http.MethodGet, path: "/api/users", bearer: token}.do(t, g)
			if users := decodeEnvelope[[]models.User](t, w).Data; len(users) != 1 {
				t.Errorf("expected 1 visible user, got %d", len(users))
			}
		})
	})

	t.Run("Channel", func(t *testing.T) {
		channel := &models.Channel{ChannelID: "UC1", Title: "Mine", SubscriberCount: 10}

		t.Run("Link", func(t *testing.T) {
			body := models.ChannelLinkRequest{UID: "u1", DocData: channel}
			w := apiCall{method: http.MethodPost, path: "/api/users/u1/youtube", bearer: token, body: body}.do(t, g)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}
			env := decodeEnvelope[models.Channel](t, w)
			if !env.Success || env.Data.UID != "u1" || env.Data.ChannelID != "UC1" {
				t.Errorf("unexpected envelope %+v", env)
			}
		})

		t.Run("Relink Replaces", func(t *testing.T) {
			body := models.ChannelLinkRequest{UID: "u1", DocData: &models.Channel{ChannelID: "UC2", Title: "New"}}
			w := apiCall{method: http.MethodPost, path: "/api/users/u1/youtube", bearer: token, body: body}.do(t, g)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}

			w = apiCall{method: http.MethodGet, path: "/api/users/u1/youtube", bearer: token}.do(t, g)
			if got := decodeEnvelope[models.Channel](t, w).Data; got.ChannelID != "UC2" {
				t.Errorf("expected UC2, got %s", got.ChannelID)
			}
		})

		t.Run("Mismatched Owner", func(t *testing.T) {
			body := models.ChannelLinkRequest{UID: "u1", DocData: &models.Channel{UID: "u2", ChannelID: "UC3", Title: "x"}}
			w := apiCall{method: http.MethodPost, path: "/api/users/u1/youtube", bearer: token, body: body}.do(t, g)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})

		t.Run("Unknown User", func(t *testing.T) {
			body := models.ChannelLinkRequest{UID: "u2", DocData: &models.Channel{ChannelID: "UC3", Title: "x"}}
			w := apiCall{method: http.MethodPost, path: "/api/users/u2/youtube", bearer: other, body: body}.do(t, g)
			if w.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", w.Code)
			}
		})

		t.Run("Not Linked", func(t *testing.T) {
			w := apiCall{method: http.MethodGet, path: "/api/users/u2/youtube", bearer: other}.do(t, g)
			if w.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", w.Code)
			}
		})
	})

	t.Run("Unknown API Route", func(t *testing.T) {
		w := apiCall{method: http.MethodGet, path: "/api/nope"}.do(t, g)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
		if env := decodeEnvelope[any](t, w); env.Success {
			t.Error("expected failure envelope")
		}
	})
}

func TestGatewayPages(t *testing.T) {
	g, keys := newTestGateway(t, testServerConfig())

	signIn := func(t *testing.T) *http.Cookie {
		raw := keys.IDToken(t, "u1", "u1@example.com", testAudience, time.Hour)
		w := apiCall{method: http.MethodPost, path: "/api/session", body: models.SessionRequest{IDToken: raw}}.do(t, g)
		return sessionCookie(t, w)
	}

	t.Run("Public Page", func(t *testing.T) {
		w := apiCall{method: http.MethodGet, path: "/events/abc"}.do(t, g)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		doc := decodeEnvelope[RouteDocument](t, w).Data
		if !doc.Public || doc.SignedIn {
			t.Errorf("unexpected route document %+v", doc)
		}
	})

	t.Run("Private Page Redirects To Login", func(t *testing.T) {
		w := apiCall{method: http.MethodGet, path: "/settings?tab=profile"}.do(t, g)
		if w.Code != http.StatusSeeOther {
			t.Fatalf("expected status 303, got %d", w.Code)
		}

		loc, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid location: %v", err)
		}
		if loc.Path != "/login" {
			t.Errorf("expected /login, got %s", loc.Path)
		}
		if got := loc.Query().Get("redirectTo"); got != "/settings?tab=profile" {
			t.Errorf("expected redirectTo /settings?tab=profile, got %s", got)
		}
	})

	t.Run("Login Page Without Session", func(t *testing.T) {
		w := apiCall{method: http.MethodGet, path: "/login?redirectTo=/settings"}.do(t, g)
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("Private Page With Session", func(t *testing.T) {
		w := apiCall{method: http.MethodGet, path: "/settings", cookie: signIn(t)}.do(t, g)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if doc := decodeEnvelope[RouteDocument](t, w).Data; !doc.SignedIn || doc.UID != "u1" {
			t.Errorf("unexpected route document %+v", doc)
		}
	})

	t.Run("Login Page With Session", func(t *testing.T) {
		tests := []struct {
			redirectTo string
			want       string
		}{
			{"/events/stats", "/events/stats"},
			{"//evil.example.com", "/"},
			{"https://evil.example.com/", "/"},
			{"", "/"},
		}

		cookie := signIn(t)
		for _, tt := range tests {
			path := "/login?" + url.Values{"redirectTo": {tt.redirectTo}}.Encode()
			w := apiCall{method: http.MethodGet, path: path, cookie: cookie}.do(t, g)
			if w.Code != http.StatusSeeOther {
				t.Errorf("expected status 303, got %d", w.Code)
				continue
			}
			if got := w.Header().Get("Location"); got != tt.want {
				t.Errorf("redirectTo %q: expected %s, got %s", tt.redirectTo, tt.want, got)
			}
		}
	})

	t.Run("Upstream Proxy", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("rendered " + r.URL.Path))
		}))
		defer upstream.Close()

		config := testServerConfig()
		config.UpstreamURL = upstream.URL
		proxied, _ := newTestGateway(t, config)

		w := apiCall{method: http.MethodGet, path: "/events"}.do(t, proxied)
		if w.Body.String() != "rendered /events" {
			t.Errorf("expected proxied body, got %q", w.Body.String())
		}
	})

	t.Run("Upstream Down", func(t *testing.T) {
		config := testServerConfig()
		config.UpstreamURL = "http://127.0.0.1:1"
		proxied, _ := newTestGateway(t, config)

		w := apiCall{method: http.MethodGet, path: "/events"}.do(t, proxied)
		if w.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", w.Code)
		}
	})

	t.Run("Invalid Upstream", func(t *testing.T) {
		config := testServerConfig()
		config.UpstreamURL = "not a url"
		if _, err := NewGateway(config, setupTestDB(t), nil, log.New(io.Discard)); err == nil {
			t.Error("expected error for invalid upstream")
		}
	})
}

func TestGatewayRateLimit(t *testing.T) {
	config := testServerConfig()
	config.RateLimit = 0.001
	config.RateBurst = 2
	g, _ := newTestGateway(t, config)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = apiCall{method: http.MethodGet, path: "/health"}.do(t, g).Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("expected burst of 2 to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", codes[2])
	}
}

func TestGatewayRateLimitClientIP(t *testing.T) {
	hit := func(g *Gateway, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("Ignores Forwarded For By Default", func(t *testing.T) {
		config := testServerConfig()
		config.RateLimit = 0.001
		config.RateBurst = 2
		g, _ := newTestGateway(t, config)

		codes := []int{hit(g, "198.51.100.1"), hit(g, "198.51.100.2"), hit(g, "198.51.100.3")}
		if codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected spoofed X-Forwarded-For to share one bucket, got %v", codes)
		}
	})

	t.Run("Trusts Forwarded For Behind Proxy", func(t *testing.T) {
		config := testServerConfig()
		config.RateLimit = 0.001
		config.RateBurst = 2
		config.TrustProxy = true
		g, _ := newTestGateway(t, config)

		codes := []int{hit(g, "198.51.100.1"), hit(g, "198.51.100.2"), hit(g, "198.51.100.3")}
		for i, code := range codes {
			if code != http.StatusOK {
				t.Errorf("request %d: expected status 200, got %d", i, code)
			}
		}
	})
}

func TestGatewayServe(t *testing.T) {
	g, _ := newTestGateway(t, testServerConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("timed out waiting for shutdown")
	}
}
