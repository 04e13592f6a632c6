package bpe_corpus

import (
	"errors"
	"fmt"
)

// Error kinds raised by the sampling core. Callers match them with
// errors.Is; none of them are retried.
var (
	// ErrInvalidArgument is a caller contract violation, such as a negative
	// sample size or a malformed exclusion set.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrExhaustion means the stream held fewer non-excluded items than
	// the requested sample size.
	ErrExhaustion = errors.New("sample larger than population")
	// ErrMissingPrerequisite means evaluation sampling was attempted
	// without a training index entry for the key.
	ErrMissingPrerequisite = errors.New("missing prerequisite")
	// ErrSchemaMismatch means two index maps do not share the same keys.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrConflictDetected means a train and eval index overlap.
	ErrConflictDetected = errors.New("conflict detected")
)

// KeyError
// Attaches the SampleKey being processed to an error so the pipeline can
// report which key failed.
type KeyError struct {
	Key SampleKey
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("category = %s, language = %s: %v",
		e.Key.Category, e.Key.Language, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
