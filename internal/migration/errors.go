package migration

import "fmt"

// TopLevelReadError reports a failure listing owners. It aborts the pass.
type TopLevelReadError struct {
	Path string
	Err  error
}

func (e *TopLevelReadError) Error() string {
	return fmt.Sprintf("reading owners under /%s: %v", e.Path, e.Err)
}

func (e *TopLevelReadError) Unwrap() error { return e.Err }

// OwnerReadError reports a failure reading one owner's tasks. The owner is
// skipped and the pass continues.
type OwnerReadError struct {
	Owner string
	Err   error
}

func (e *OwnerReadError) Error() string {
	return fmt.Sprintf("reading tasks of owner %s: %v", e.Owner, e.Err)
}

func (e *OwnerReadError) Unwrap() error { return e.Err }

// RecordWriteError reports a failed idOS update. The record is skipped and
// the pass continues.
type RecordWriteError struct {
	Owner string
	Key   string
	IDOS  string
	Err   error
}

func (e *RecordWriteError) Error() string {
	return fmt.Sprintf("updating task %s of owner %s to %q: %v", e.Key, e.Owner, e.IDOS, e.Err)
}

func (e *RecordWriteError) Unwrap() error { return e.Err }
