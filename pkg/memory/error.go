package memory

import "errors"

// ErrSessionNotFound indicates an operation referenced a session ID that is
// not present in the session store.
var ErrSessionNotFound = errors.New("session not found")
