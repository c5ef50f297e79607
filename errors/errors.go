package errors

import "fmt"

// InvalidSeek indicates that a seek operation computed an absolute target
// before the beginning of the stream, either in byte or row space. It is
// returned before any I/O is attempted.
type InvalidSeek struct {
	Target int64
	Rows   bool
}

func (i InvalidSeek) Error() string {
	unit := "byte"
	if i.Rows {
		unit = "row"
	}
	return fmt.Sprintf("invalid seek to negative %s position %d", unit, i.Target)
}

// NotSeekable indicates that an operation requiring the source to be
// repositioned was invoked on a forward-only cursor.
type NotSeekable struct {
	Op string
}

func (n NotSeekable) Error() string {
	return fmt.Sprintf("%s: cursor source is not seekable", n.Op)
}

// InvalidGranularity indicates an attempt to configure a sampling
// granularity below one row.
type InvalidGranularity struct {
	Value int64
}

func (i InvalidGranularity) Error() string {
	return fmt.Sprintf("invalid granularity %d: must be at least 1", i.Value)
}

// CannotAcquireLock indicates that the exclusive lock over a row file could
// not be obtained since it is in use by another process. The process holding
// the lock is present in the PID field of this error.
type CannotAcquireLock struct {
	PID int
}

func (c CannotAcquireLock) Error() string {
	return fmt.Sprintf("cannot acquire row file lock, as it is being held by process %d", c.PID)
}
