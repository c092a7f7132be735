package llm

import "errors"

// ErrCompletion is returned when a completion call fails or the provider
// returns an empty result.
var ErrCompletion = errors.New("completion failed")
