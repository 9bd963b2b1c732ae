package store

import "errors"

// ErrUnknownDocument is returned when an operation references a document
// that is not present in the store.
var ErrUnknownDocument = errors.New("unknown document")
