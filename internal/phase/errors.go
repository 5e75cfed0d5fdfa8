package phase

import (
	"errors"
	"fmt"
)

// WrongPhaseError reports an operation invoked outside the phase it is
// declared for. It indicates a programming error in tree construction or
// in a device hook and is never recoverable.
type WrongPhaseError struct {
	Node    string
	Op      Op
	Want    Phase
	Current Phase
}

func (e *WrongPhaseError) Error() string {
	return fmt.Sprintf("%s: %s cannot be called in phase %s (requires %s)",
		e.Node, e.Op, e.Current, e.Want)
}

// AlreadyCalledError reports an exactly-once operation invoked a second
// time on the same node in one phase.
type AlreadyCalledError struct {
	Node  string
	Op    Op
	Phase Phase
}

func (e *AlreadyCalledError) Error() string {
	return fmt.Sprintf("%s: %s already called once in phase %s",
		e.Node, e.Op, e.Phase)
}

// NotCalledError reports a phase advanced without a required operation
// having run on some node. It identifies the offending node and
// operation.
type NotCalledError struct {
	Node  string
	Op    Op
	Phase Phase
}

func (e *NotCalledError) Error() string {
	return fmt.Sprintf("%s: %s not called by the end of phase %s",
		e.Node, e.Op, e.Phase)
}

// SkipError reports an attempt to advance the phase machine to anything
// other than the immediately following phase.
type SkipError struct {
	From Phase
	To   Phase
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("cannot advance from phase %s to %s: phases are strictly ordered",
		e.From, e.To)
}

// IsPhaseError reports whether err is any of the phase-discipline errors.
// Uses errors.As to handle wrapped errors.
func IsPhaseError(err error) bool {
	var wrongPhase *WrongPhaseError
	var alreadyCalled *AlreadyCalledError
	var notCalled *NotCalledError
	var skip *SkipError
	return errors.As(err, &wrongPhase) ||
		errors.As(err, &alreadyCalled) ||
		errors.As(err, &notCalled) ||
		errors.As(err, &skip)
}
