package tracking

import "fmt"

// UnavailableError is returned when the camera or the estimator cannot be
// started.
type UnavailableError struct {
	Component string // capture or estimator
	Err       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("tracking unavailable: %s: %v", e.Component, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
