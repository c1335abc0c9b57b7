package device

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by operations that need a Ready link.
var ErrNotConnected = errors.New("not connected")

// ConnectionError reports why a connect attempt failed. Step names the
// handle or configuration call that failed.
type ConnectionError struct {
	Address string
	Step    string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %s: %v", e.Address, e.Step, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
