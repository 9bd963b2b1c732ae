package agent

import "errors"

// ErrNoDocumentInScope is returned when a document-scoped mode is
// dispatched with an empty session scope. The request is rejected rather
// than silently falling back to general chat.
var ErrNoDocumentInScope = errors.New("no document in scope")
