package routes

import (
	"errors"
	"fmt"
)

var (
	ErrParameterCountMismatch = errors.New("parameter count mismatch")
	ErrMissingQueryParameter  = errors.New("missing query parameter")
	ErrInvalidParameterType   = errors.New("invalid parameter type")
	ErrUnknownTemplate        = errors.New("unknown route template")
	ErrShapeMismatch          = errors.New("declared shape does not match template")
)

// ParameterCountError reports a positional value count that differs from the
// number of path placeholders in a template.
type ParameterCountError struct {
	Template string
	Expected int
	Actual   int
}

func (e *ParameterCountError) Error() string {
	return fmt.Sprintf("%v: %q expects %d path values, got %d", ErrParameterCountMismatch, e.Template, e.Expected, e.Actual)
}

func (e *ParameterCountError) Unwrap() error { return ErrParameterCountMismatch }

// MissingQueryParameterError names a query key declared by a template but absent from the supplied params.
type MissingQueryParameterError struct {
	Template string
	Key      string
}

func (e *MissingQueryParameterError) Error() string {
	return fmt.Sprintf("%v: %q requires query key %q", ErrMissingQueryParameter, e.Template, e.Key)
}

func (e *MissingQueryParameterError) Unwrap() error { return ErrMissingQueryParameter }

// InvalidParameterTypeError reports a path value that is not a string, or a query value of an unsupported kind.
//
// Index is the zero-based position of a path value; it is -1 for query values, which set Key instead.
type InvalidParameterTypeError struct {
	Template string
	Index    int
	Key      string
	Value    any
}

func (e *InvalidParameterTypeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%v: query value for %q has unsupported type %T", ErrInvalidParameterType, e.Key, e.Value)
	}
	return fmt.Sprintf("%v: %q path value #%d must be a string, got %T (%v)", ErrInvalidParameterType, e.Template, e.Index+1, e.Value, e.Value)
}

func (e *InvalidParameterTypeError) Unwrap() error { return ErrInvalidParameterType }
