package usecase

import "fmt"

// StoreError is returned when the balance store fails while applying an event.
// Permanent marks failures that will repeat on every redelivery, such as a
// value the column cannot hold.
type StoreError struct {
	Op        string
	Err       error
	Permanent bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("balance store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
