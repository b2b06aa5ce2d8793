package models

import "errors"

// FatalError marks a failure that event redelivery cannot fix, such as an
// unsupported input document or a content-policy rejection. Handlers record
// it as an observable failure and acknowledge the event instead of returning
// it for retry.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so that IsFatal reports true for it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether any error in err's chain is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
