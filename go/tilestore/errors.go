package tilestore

import "errors"

// ErrNotOwner is returned when Set is called on an ordinal not local to
// this process.
var ErrNotOwner = errors.New("tilestore: set called on a non-local ordinal")

// ErrAlreadySet is returned when Set is called a second time for the same
// ordinal.
var ErrAlreadySet = errors.New("tilestore: ordinal already set")

// ErrInvariantViolation is returned by Set for an ordinal that
// ProcessPending has already finalized as absent. A repeated Set of an
// ordinal that was set normally returns ErrAlreadySet instead, and a Store
// has no teardown step, so nothing reports live waiters at destruction.
var ErrInvariantViolation = errors.New("tilestore: invariant violation")

// ErrTransportError is surfaced from the simulated runtime into any future
// waiting on the affected ordinal.
var ErrTransportError = errors.New("tilestore: transport error")

// ErrShapeMismatch is returned by New when the TiledRange, Shape and Pmap
// do not all cover the same number of tiles.
var ErrShapeMismatch = errors.New("tilestore: shape mismatch")
