package airtable

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch means a configured field name or type disagrees with what
// the Airtable metadata API reports. It is fatal and never retried: syncing
// against a drifted schema risks silent data loss.
var ErrSchemaMismatch = errors.New("airtable schema mismatch")

// TransientError wraps a rate-limit, server-error or timeout failure that
// survived the bounded retry policy. The reconciler treats it as a phase
// failure; a later run can safely retry the whole phase.
type TransientError struct {
	Op         string // "list jobs", "create records", ...
	StatusCode int    // last HTTP status, 0 for transport errors
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("airtable %s: giving up after retries (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("airtable %s: giving up after retries: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
