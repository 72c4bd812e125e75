// Package repository defines the MongoDB-backed credential store and the
// sentinel errors it reports. Handlers and the session layer translate
// these into the HTTP error taxonomy.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no document. It is an
// ordinary negative result, not a failure.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert would violate a unique index
// (duplicate email, user name or token hash).
var ErrConflict = errors.New("conflict")

// ErrInvalidID is returned when an identifier is not a valid ObjectID hex
// string. No query is issued in that case.
var ErrInvalidID = errors.New("invalid id")
