package topics

import "fmt"

// ValidationError reports invalid input to a creation operation. The caller
// should re-prompt the user; no state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a mutation that referenced a topic or checkpoint
// that does not exist. No partial mutation occurred.
type NotFoundError struct {
	Kind string // "topic" or "checkpoint"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PersistenceError reports a failed store write. The in-memory snapshot
// already reflects the mutation and remains authoritative for the session;
// later mutations will retry persisting the full collection.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: failed to persist topics: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CorruptDataError reports that the persisted collection could not be
// decoded. The repository falls back to an empty collection rather than
// crash; the next successful mutation overwrites the corrupt value.
type CorruptDataError struct {
	Err error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt topic data in store: %v", e.Err)
}

func (e *CorruptDataError) Unwrap() error { return e.Err }
