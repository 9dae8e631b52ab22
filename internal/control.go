package internal

import "fmt"

// Stop represents the reason for flow control.
type Stop int

// Control flow reasons.
const (
	// NoStop indicates normal execution.
	NoStop Stop = iota
	// ExceptionStop indicates that a condition was raised and caught by the
	// innermost protected region.
	ExceptionStop
	// ExitStop indicates that the VM has been closed and all tasks must
	// exit.
	ExitStop
)

var stopNames = [...]string{"normal", "exception", "exit"}

// String returns a string representation of the Stop.
func (s Stop) String() string {
	if s < NoStop || s > ExitStop {
		return fmt.Sprintf("Stop(%d)", s)
	}
	return stopNames[s]
}

// Err returns nil if s is NoStop or an error value if s is ExceptionStop or
// ExitStop. Panics otherwise.
func (s Stop) Err() error {
	switch s {
	case NoStop:
		return nil
	case ExceptionStop, ExitStop:
		return stopError(s)
	default:
		panic(fmt.Sprintf("jlrt: invalid Stop: %v", s))
	}
}

type stopError Stop

func (err stopError) Error() string {
	return Stop(err).String()
}

// exitSignal is the panic value that unwinds a task goroutine when its VM is
// closed or its task object is collected while parked.
type exitSignal struct{}
