package loader

import (
	"errors"
	"fmt"
)

// ErrLoadFailure marks any failure to fetch, decode or parse a source.
var ErrLoadFailure = errors.New("load failure")

// LoadError describes a failed load of a single source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailure, e.Err}
}

func loadError(source string, err error) error {
	return &LoadError{Source: source, Err: err}
}
