package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/eventory/internal/routes"
)

// RouteDocument describes a page request when no upstream renderer is configured.
type RouteDocument struct {
	Path     string `json:"path"`
	Public   bool   `json:"public"`
	SignedIn bool   `json:"signedIn"`
	UID      string `json:"uid,omitempty"`
}

// Pages answers every page request that passed the [AuthGate].
type Pages struct {
	proxy *httputil.ReverseProxy
}

// NewPages proxies page requests to upstream, or answers them with a [RouteDocument] when upstream is empty.
func NewPages(upstream string, logger *log.Logger) (*Pages, error) {
	if upstream == "" {
		return &Pages{}, nil
	}

	target, err := url.Parse(upstream)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", upstream)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxyLogger := logger.WithPrefix("proxy")
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		proxyLogger.Error("upstream request failed", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	}
	return &Pages{proxy: proxy}, nil
}

// Routes returns the catch-all pattern.
func (p *Pages) Routes() []string {
	return []string{"/"}
}

func (p *Pages) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.proxy != nil {
		p.proxy.ServeHTTP(w, r)
		return
	}

	doc := RouteDocument{Path: r.URL.Path, Public: routes.IsPublic(r.URL.Path)}
	if claims := SessionFromContext(r.Context()); claims != nil {
		doc.SignedIn = true
		doc.UID = claims.Subject
	}
	respondOK(w, http.StatusOK, doc)
}
