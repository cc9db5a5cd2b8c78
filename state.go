package onset

import "fmt"

// State represents a state in the service state machine:
//
//          +--------------+
//          | Constructed  +----+
//          +-+------------+    |
//            | Start           |
//          +-v------------+    |
//          | Running      +----+
//          +-+------------+    |
//            | Stop, or        |
//            | RunLoop returns |
//          +-v------------+    |
//          | Stopping     +----+
//          +--------------+    |
//                              | Dispose
//          +--------------+    |
//          | Disposed     <----+
//          +--------------+
//
// Disposed is terminal.
type State uint8

const (
	// Constructed is the initial state: the worker goroutine is not running.
	Constructed State = iota
	// Running means Start was called and the running flag is set.
	Running
	// Stopping means the running flag was cleared. The worker goroutine may
	// still be finishing its current iteration.
	Stopping
	// Disposed means all resources were released.
	Disposed
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "Constructed"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Disposed:
		return "Disposed"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}
