// Package routes resolves the application's route templates into concrete URLs.
//
// A template is a path with positional placeholders (":eventId") and an optional query clause
// naming required keys ("?redirectTo&page"). The set of templates is closed: every
// [Template] constant is listed in a schema table with its declared [Shape], and the table is
// checked against the template strings when the package is initialized.
//
// Callers with fixed arguments should prefer the typed builders ([EventPath], [LoginRedirectPath], ...),
// whose signatures carry the arity and query keys of their template. [Navigate] is the dynamic entry
// point used by redirects and the CLI; it checks the call against the declared shape every time.
package routes

import (
	"fmt"
	"sort"
	"strconv"
)

// Template is a route template from the closed application catalog.
type Template string

// RedirectToKey is the query key carrying the originally requested path through the login flow.
const RedirectToKey = "redirectTo"

const (
	Root          Template = "/"
	Login         Template = "/login"
	LoginRedirect Template = "/login?" + RedirectToKey
	Events        Template = "/events"
	EventsPage    Template = "/events?page"
	EventsNew     Template = "/events/form/new"
	EventsEdit    Template = "/events/form/edit?eventId"
	Event         Template = "/events/:eventId"
	EventStats    Template = "/events/:eventId/stats"
	EventsStats   Template = "/events/stats"
	Chats         Template = "/chats"
	Stats         Template = "/stats"
	Rewards       Template = "/rewards"
	Settings      Template = "/settings"
)

func (t Template) String() string { return string(t) }

// Shape returns the declared parameter shape of t and whether t is in the catalog.
func (t Template) Shape() (Shape, bool) {
	s, ok := catalog[t]
	return s, ok
}

// catalog is the schema table of every known template.
var catalog = map[Template]Shape{
	Root:          {},
	Login:         {},
	LoginRedirect: {Query: []string{RedirectToKey}},
	Events:        {},
	EventsPage:    {Query: []string{"page"}},
	EventsNew:     {},
	EventsEdit:    {Query: []string{"eventId"}},
	Event:         {Segments: []string{"eventId"}},
	EventStats:    {Segments: []string{"eventId"}},
	EventsStats:   {},
	Chats:         {},
	Stats:         {},
	Rewards:       {},
	Settings:      {},
}

func init() {
	if err := CheckCatalog(); err != nil {
		panic(err)
	}
}

// CheckCatalog verifies that every declared shape in the schema table matches its template string.
func CheckCatalog() error {
	for t, declared := range catalog {
		if err := checkShape(t, declared); err != nil {
			return err
		}
	}
	return nil
}

func checkShape(t Template, declared Shape) error {
	if parsed := Parse(string(t)); !parsed.equal(declared) {
		return fmt.Errorf("%w: %q declares %+v, template has %+v", ErrShapeMismatch, t, declared, parsed)
	}
	return nil
}

// Catalog returns every known template, sorted.
func Catalog() []Template {
	out := make([]Template, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup finds the catalog template spelled s.
func Lookup(s string) (Template, bool) {
	t := Template(s)
	_, ok := catalog[t]
	return t, ok
}

// Navigate resolves a catalog template.
//
// params are only read when the template declares query keys; a template without a query
// clause never produces a query string.
func Navigate(t Template, params Params, segments ...string) (string, error) {
	shape, ok := catalog[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, t)
	}
	if err := checkShape(t, shape); err != nil {
		return "", err
	}
	if len(shape.Query) == 0 {
		params = nil
	}

	values := make([]any, len(segments))
	for i, s := range segments {
		values[i] = s
	}
	return Resolve(string(t), values, params)
}

// MustNavigate is like [Navigate] but panics on error.
func MustNavigate(t Template, params Params, segments ...string) string {
	url, err := Navigate(t, params, segments...)
	if err != nil {
		panic(err)
	}
	return url
}

// EventPath builds [Event].
func EventPath(eventID string) string {
	return MustNavigate(Event, nil, eventID)
}

// EventStatsPath builds [EventStats].
func EventStatsPath(eventID string) string {
	return MustNavigate(EventStats, nil, eventID)
}

// EventsEditPath builds [EventsEdit].
func EventsEditPath(eventID string) string {
	return MustNavigate(EventsEdit, Params{"eventId": eventID})
}

// EventsPagePath builds [EventsPage].
func EventsPagePath(page int) string {
	return MustNavigate(EventsPage, Params{"page": strconv.Itoa(page)})
}

// LoginRedirectPath builds [LoginRedirect].
func LoginRedirectPath(redirectTo string) string {
	return MustNavigate(LoginRedirect, Params{RedirectToKey: redirectTo})
}
