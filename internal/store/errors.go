package store

import "errors"

// ErrNotFound indicates a missing sync record lookup.
var ErrNotFound = errors.New("sync record not found")

// ErrDuplicate indicates an insert for a card id that is already tracked.
var ErrDuplicate = errors.New("sync record already exists")
