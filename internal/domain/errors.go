package domain

import "errors"

var (
	// ErrStore marks infrastructure failures of the canonical store. They abort a batch.
	ErrStore = errors.New("store failure")
	// ErrNotFound is returned by lookups that found nothing.
	ErrNotFound = errors.New("not found")
	// ErrMalformed marks extractor output that cannot be interpreted.
	ErrMalformed = errors.New("malformed record")
)
