package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoSuggestions means the suggestion service produced no usable
	// candidates. This is the only terminal error of a tour resolution.
	ErrNoSuggestions = errors.New("no landmark suggestions for destination")
)
