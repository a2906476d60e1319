package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is an error built from a recovered panic. It keeps the
// original panic value and the stack at the point of recovery.
type PanicError struct {
	PanicValue interface{}
	StackTrace string
	// Operation identifies where the panic was recovered, e.g. "RandomForestClassifier.Fit[3]".
	Operation string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap returns nil; a PanicError never wraps another error.
func (e *PanicError) Unwrap() error {
	return nil
}

// String includes the stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError with the given operation context and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error assigned to *err. Use it with defer:
//
//	func (t *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
//	    defer Recover(&err, "DecisionTreeClassifier.Fit")
//	    ...
//	}
//
// If *err is already set, the panic is reported alongside the original error.
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		if *err != nil {
			*err = fmt.Errorf("panic in %s: %v (original error: %w)",
				operation, r, *err)
			return
		}
		*err = NewPanicError(operation, r)
	}
}

// SafeExecute runs fn and turns any panic into a PanicError. Worker
// goroutines use it so a panic in one tree does not take down the process.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
