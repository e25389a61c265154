// Package errors provides structured error types for the canvas harness.
//
// Errors are categorized by Phase (where in the harness lifecycle the error
// occurred) and Kind (error category). The three phases callers usually care
// about are:
//
//   - PhaseInit: the compute module failed to load or its entry raised.
//     Fatal, shown by the error presenter, never retried.
//   - PhaseHandshake: the worker's first message was not the sentinel, the
//     channel closed first, or the wait timed out.
//   - PhaseRuntime: an exception inside a steady-state handler.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRuntime, errors.KindHandlerFailed).
//		Op("push_key_event").
//		Cause(trap).
//		Build()
//
// Classify with the standard library:
//
//	if stderrors.Is(err, errors.ErrHandshake) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
