package assets

import "fmt"

// LoadError is returned when an asset cannot be fetched or parsed.
type LoadError struct {
	Locator string
	Op      string // fetch or parse
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("asset %s: %s: %v", e.Locator, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
