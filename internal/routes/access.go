package routes

import (
	"net/url"
	"strings"
)

// IsPublic reports whether path may be visited without a session.
//
// Public paths are the landing page, the event list, any single /events/<id> page
// whose id is made of letters, digits, '_' or '-' (except the event form), and
// everything under /api.
func IsPublic(path string) bool {
	switch {
	case path == string(Root), path == string(Events):
		return true
	case strings.HasPrefix(path, "/api/"), path == "/api":
		return true
	case strings.HasPrefix(path, "/events/"):
		rest := strings.TrimPrefix(path, "/events/")
		if rest == "" || strings.Contains(rest, "/") {
			return false
		}
		return rest != "form" && isSlug(rest)
	}
	return false
}

// isSlug reports whether s is a non-empty run of [a-zA-Z0-9_-].
func isSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// IsLogin reports whether path is the login page.
func IsLogin(path string) bool {
	return path == string(Login)
}

// SafeRedirect returns raw when it is a local absolute path, or [Root] otherwise.
func SafeRedirect(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
		return string(Root)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return string(Root)
	}
	return raw
}
