package measure

import "fmt"

// DataUnavailableError is returned when the measurement source cannot
// provide a usable profile.
type DataUnavailableError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *DataUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("measurements unavailable from %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("measurements unavailable from %s: %v", e.Endpoint, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}
