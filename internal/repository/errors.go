// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrNotFound means the requested order or menu record does not
// exist, while ErrConflict signals that an operation cannot proceed
// because of the record's current state (e.g. changing the status of an
// order that was already delivered).
package repository

import "errors"

// ErrNotFound is returned when a lookup by id matches no row. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller asks for an order that
// belongs to a different customer. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as moving a delivered or cancelled order
// to another status. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")
