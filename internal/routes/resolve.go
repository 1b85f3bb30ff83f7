package routes

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`:([a-zA-Z0-9_]+)`)

// Shape is the parameter contract of a template: its path placeholders in
// order of appearance and the query keys named by its query clause.
type Shape struct {
	Segments []string
	Query    []string
}

// Arity returns the number of positional values the template requires.
func (s Shape) Arity() int { return len(s.Segments) }

func (s Shape) equal(o Shape) bool {
	if len(s.Segments) != len(o.Segments) || len(s.Query) != len(o.Query) {
		return false
	}
	for i := range s.Segments {
		if s.Segments[i] != o.Segments[i] {
			return false
		}
	}
	for i := range s.Query {
		if s.Query[i] != o.Query[i] {
			return false
		}
	}
	return true
}

// split separates a template into its path part and its query clause.
func split(template string) (path, clause string) {
	path, clause, _ = strings.Cut(template, "?")
	return path, clause
}

// Parse derives the [Shape] of a template string.
func Parse(template string) Shape {
	path, clause := split(template)

	var shape Shape
	for _, m := range placeholder.FindAllStringSubmatch(path, -1) {
		shape.Segments = append(shape.Segments, m[1])
	}
	if clause != "" {
		for _, key := range strings.Split(clause, "&") {
			if key != "" {
				shape.Query = append(shape.Query, key)
			}
		}
	}
	return shape
}

// Resolve substitutes segments into the placeholders of template, left to right,
// and appends the serialized params as the query string.
//
// Validation runs in a fixed order: the segment count must equal the placeholder count,
// every declared query key must be present in params, and every segment must be a string.
// Segment values are substituted verbatim.
func Resolve(template string, segments []any, params Params) (string, error) {
	shape := Parse(template)

	if len(segments) != shape.Arity() {
		return "", &ParameterCountError{Template: template, Expected: shape.Arity(), Actual: len(segments)}
	}

	for _, key := range shape.Query {
		if _, ok := params[key]; !ok {
			return "", &MissingQueryParameterError{Template: template, Key: key}
		}
	}

	values := make([]string, len(segments))
	for i, seg := range segments {
		s, ok := seg.(string)
		if !ok {
			return "", &InvalidParameterTypeError{Template: template, Index: i, Value: seg}
		}
		values[i] = s
	}

	path, _ := split(template)
	i := 0
	path = placeholder.ReplaceAllStringFunc(path, func(string) string {
		v := values[i]
		i++
		return v
	})

	return WithQuery(path, params)
}

// MustResolve is like [Resolve] but panics on a contract violation.
func MustResolve(template string, segments []any, params Params) string {
	url, err := Resolve(template, segments, params)
	if err != nil {
		panic(err)
	}
	return url
}
