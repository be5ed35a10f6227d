// Package storage provides the persistent store adapter used by the session
// manager.  A Slot is exactly one named value holding a serialized
// document; a Backend hands out slots by name.  Keeping the contract this
// narrow lets the backing store (memory, Redis, MySQL) be swapped without
// touching the session layer.
package storage

import (
	"context"
	"errors"
)

// ErrSlotTooLarge is returned by backends that enforce a size limit when a
// write exceeds it.  It plays the role of a storage quota error.
var ErrSlotTooLarge = errors.New("slot value exceeds size limit")

// Slot reads and writes a single serialized value.  Read reports ok=false
// with a nil error when nothing is stored; a non-nil error always means
// the underlying store failed.
type Slot interface {
	Name() string
	Read(ctx context.Context) (value string, ok bool, err error)
	Write(ctx context.Context, value string) error
	Remove(ctx context.Context) error
}

// Backend returns slots by name.  Slots returned for the same name share
// state.
type Backend interface {
	Slot(name string) Slot
}
