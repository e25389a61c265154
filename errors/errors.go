package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the harness lifecycle the error occurred
type Phase string

const (
	PhaseInit      Phase = "init"      // module load or entry invocation
	PhaseHandshake Phase = "handshake" // worker channel construction
	PhaseRuntime   Phase = "runtime"   // steady-state callbacks and message handlers
	PhaseLoad      Phase = "load"      // wasm compile/instantiate
	PhaseContract  Phase = "contract"  // export signature checks
	PhaseConfig    Phase = "config"    // flag and option parsing
)

// Kind categorizes the error
type Kind string

const (
	KindLoadFailed        Kind = "load_failed"
	KindEntryFailed       Kind = "entry_failed"
	KindUnexpectedMessage Kind = "unexpected_message"
	KindChannelClosed     Kind = "channel_closed"
	KindSpawnFailed       Kind = "spawn_failed"
	KindTimeout           Kind = "timeout"
	KindCanceled          Kind = "canceled"
	KindHandlerFailed     Kind = "handler_failed"
	KindNotReady          Kind = "not_ready"
	KindMissingExport     Kind = "missing_export"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidHandle     Kind = "invalid_handle"
	KindInvalidInput      Kind = "invalid_input"
	KindClosed            Kind = "closed"
)

// Error is the structured error type used throughout the harness
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Kind on the target matches any kind within the phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Phase != t.Phase {
		return false
	}
	return t.Kind == "" || e.Kind == t.Kind
}

// Class targets for errors.Is, matching every error of one phase.
var (
	ErrInit      = &Error{Phase: PhaseInit}
	ErrHandshake = &Error{Phase: PhaseHandshake}
	ErrRuntime   = &Error{Phase: PhaseRuntime}
)

// InPhase reports whether err (or anything it wraps) is an *Error of the given phase.
func InPhase(err error, phase Phase) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Phase == phase
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the module operation or component the error belongs to
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Init error constructors

// LoadFailed reports that the compute module could not be loaded
func LoadFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindLoadFailed,
		Detail: "load compute module",
		Cause:  cause,
	}
}

// EntryFailed reports that the module's entry function raised
func EntryFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindEntryFailed,
		Op:     "entry",
		Detail: "entry function failed",
		Cause:  cause,
	}
}

// Handshake error constructors

// UnexpectedFirstMessage reports a first worker message other than the sentinel
func UnexpectedFirstMessage(msg []byte) *Error {
	preview := msg
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseHandshake,
		Kind:   KindUnexpectedMessage,
		Detail: fmt.Sprintf("first worker message %q is not the handshake sentinel", preview),
		Value:  string(msg),
	}
}

// ChannelClosed reports that the worker channel closed before the handshake completed
func ChannelClosed() *Error {
	return &Error{
		Phase:  PhaseHandshake,
		Kind:   KindChannelClosed,
		Detail: "worker channel closed before handshake",
	}
}

// SpawnFailed reports that the background context could not be started
func SpawnFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseHandshake,
		Kind:   KindSpawnFailed,
		Detail: "spawn worker",
		Cause:  cause,
	}
}

// HandshakeTimeout reports that no first message arrived within the configured wait
func HandshakeTimeout(wait fmt.Stringer) *Error {
	return &Error{
		Phase:  PhaseHandshake,
		Kind:   KindTimeout,
		Detail: fmt.Sprintf("no handshake after %s", wait),
	}
}

// HandshakeCanceled reports that the caller gave up waiting
func HandshakeCanceled(cause error) *Error {
	return &Error{
		Phase:  PhaseHandshake,
		Kind:   KindCanceled,
		Detail: "handshake wait canceled",
		Cause:  cause,
	}
}

// Runtime error constructors

// HandlerFailed wraps an exception raised inside a module operation at steady state
func HandlerFailed(op string, cause error) *Error {
	return &Error{
		Phase: PhaseRuntime,
		Kind:  KindHandlerFailed,
		Op:    op,
		Cause: cause,
	}
}

// NotReady reports use of a worker channel that has not completed its handshake
func NotReady(state string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindNotReady,
		Detail: fmt.Sprintf("worker channel is %s", state),
	}
}

// Closed reports use of a closed port or runtime
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindClosed,
		Detail: what + " is closed",
	}
}

// Guest host constructors

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoadFailed,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExport reports an export required by the harness contract
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseContract,
		Kind:   KindMissingExport,
		Op:     name,
		Detail: fmt.Sprintf("module does not export %q", name),
	}
}

// SignatureMismatch reports an export whose core signature differs from the contract
func SignatureMismatch(name, want, got string) *Error {
	return &Error{
		Phase:  PhaseContract,
		Kind:   KindSignatureMismatch,
		Op:     name,
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// OutOfBounds reports a guest pointer outside linear memory
func OutOfBounds(op string, ptr, length uint32) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindOutOfBounds,
		Op:     op,
		Detail: fmt.Sprintf("range [%d, %d) outside guest memory", ptr, uint64(ptr)+uint64(length)),
	}
}

// InvalidHandle reports a handle the guest passed that is not in the table
func InvalidHandle(op string, handle uint32) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInvalidHandle,
		Op:     op,
		Detail: fmt.Sprintf("handle %d not found", handle),
		Value:  handle,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
