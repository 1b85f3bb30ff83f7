// package testing contains shared testing utilities
package testing

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

func idTokenClaims(sub, email, audience string, ttl time.Duration) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":            sub,
		"email":          email,
		"email_verified": true,
		"name":           "Test " + sub,
		"picture":        "https://example.com/" + sub + ".png",
		"aud":            audience,
		"iss":            "https://accounts.google.com",
		"iat":            now.Unix(),
		"exp":            now.Add(ttl).Unix(),
	}
}

// KeySet signs RS256 id tokens and serves its public key as a JWKS document at URL.
type KeySet struct {
	URL string
	key *rsa.PrivateKey
	kid string
}

// NewKeySet generates a signing key and starts a JWKS server that is closed when the test ends.
func NewKeySet(t *testing.T) *KeySet {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate signing key: %v", err)
	}

	ks := &KeySet{key: key, kid: "test-key"}
	jwks := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
		{Key: &key.PublicKey, KeyID: ks.kid, Algorithm: "RS256", Use: "sig"},
	}}
	srv := httptest.NewServer(JSONHandler(t, http.StatusOK, jwks))
	t.Cleanup(srv.Close)

	ks.URL = srv.URL
	return ks
}

// IDToken returns a provider id token for sub signed by the key set that expires after ttl.
func (k *KeySet) IDToken(t *testing.T, sub, email, audience string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, idTokenClaims(sub, email, audience, ttl))
	token.Header["kid"] = k.kid

	raw, err := token.SignedString(k.key)
	if err != nil {
		t.Fatalf("Failed to sign id token: %v", err)
	}
	return raw
}

// UnsignedIDToken returns an alg "none" id token carrying the same claims as [KeySet.IDToken].
func UnsignedIDToken(t *testing.T, sub, email, audience string, ttl time.Duration) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, idTokenClaims(sub, email, audience, ttl)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Failed to encode id token: %v", err)
	}
	return raw
}

// JSONHandler responds to every request with status and body encoded as JSON.
func JSONHandler(t *testing.T, status int, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("Failed to encode response: %v", err)
		}
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
