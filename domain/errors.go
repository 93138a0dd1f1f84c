package domain

import "errors"

var (
	// ErrKeyNotFound is returned by a KVRepository when a key has no value.
	ErrKeyNotFound = errors.New("key not found")
)
