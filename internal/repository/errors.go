package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrPersistence indicates a multi-statement write reported partial success,
// e.g. a batch statement affected zero rows where exactly one was expected.
var ErrPersistence = errors.New("repository: persistence failed")
