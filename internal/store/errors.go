package store

import "errors"

// ErrNotFound is returned when a habit or journal entry id is unknown
// to a mutating operation.
var ErrNotFound = errors.New("not found")
