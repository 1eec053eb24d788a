package jobqueue

import "fmt"

// PermanentError marks a failure redelivery cannot fix (missing user, app or
// platform). The job goes to the dead-letter list without further attempts.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the queue dead-letters the job immediately.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// DropError marks a local configuration failure (missing or unsafe webhook
// URL, exhausted correlation lookup). Redelivery cannot help and dead-lettering
// is pointless; the job is logged and discarded.
type DropError struct {
	Err error
}

func (e *DropError) Error() string {
	return fmt.Sprintf("dropped: %v", e.Err)
}

func (e *DropError) Unwrap() error {
	return e.Err
}

// Drop wraps err so the queue discards the job after logging.
func Drop(err error) error {
	return &DropError{Err: err}
}
