package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindHandlerFailed,
				Op:     "worker_inc",
				Detail: "trap",
			},
			contains: []string{"[runtime]", "handler_failed", "in worker_inc", "trap"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseHandshake,
				Kind:  KindChannelClosed,
			},
			contains: []string{"[handshake]", "channel_closed"},
		},
		{
			name:     "error with cause",
			err:      LoadFailed(errors.New("no such file")),
			contains: []string{"[init]", "load_failed", "caused by", "no such file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := EntryFailed(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := UnexpectedFirstMessage([]byte("hello"))

	if !errors.Is(err, &Error{Phase: PhaseHandshake, Kind: KindUnexpectedMessage}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseHandshake, Kind: KindTimeout}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrHandshake) {
		t.Error("Is should match phase class target")
	}
	if errors.Is(err, ErrInit) {
		t.Error("Is should not match different phase")
	}
}

func TestInPhase(t *testing.T) {
	wrapped := fmt.Errorf("open worker: %w", HandshakeTimeout(2*time.Second))

	if !InPhase(wrapped, PhaseHandshake) {
		t.Error("InPhase should see through fmt wrapping")
	}
	if InPhase(wrapped, PhaseInit) {
		t.Error("InPhase matched wrong phase")
	}
	if InPhase(errors.New("plain"), PhaseRuntime) {
		t.Error("InPhase matched a plain error")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseRuntime, KindHandlerFailed).
		Op("push_key_event").
		Value("a").
		Cause(cause).
		Detail("key %q rejected", "a").
		Build()

	if err.Phase != PhaseRuntime {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseRuntime)
	}
	if err.Op != "push_key_event" {
		t.Errorf("Op = %q", err.Op)
	}
	if err.Value != "a" {
		t.Errorf("Value = %v", err.Value)
	}
	if err.Detail != `key "a" rejected` {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}

func TestUnexpectedFirstMessage_TruncatesPreview(t *testing.T) {
	long := []byte(strings.Repeat("x", 100))
	err := UnexpectedFirstMessage(long)

	if strings.Count(err.Detail, "x") != 32 {
		t.Errorf("detail should preview 32 bytes: %q", err.Detail)
	}
	if err.Value != string(long) {
		t.Error("Value should carry the full message")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{ChannelClosed(), PhaseHandshake, KindChannelClosed},
		{SpawnFailed(errors.New("boom")), PhaseHandshake, KindSpawnFailed},
		{HandshakeCanceled(errors.New("ctx")), PhaseHandshake, KindCanceled},
		{HandlerFailed("on_worker_message", nil), PhaseRuntime, KindHandlerFailed},
		{NotReady("awaiting-handshake"), PhaseRuntime, KindNotReady},
		{Closed("port"), PhaseRuntime, KindClosed},
		{MissingExport("set_scale"), PhaseContract, KindMissingExport},
		{SignatureMismatch("set_scale", "(f64)", "(i32)"), PhaseContract, KindSignatureMismatch},
		{OutOfBounds("log", 10, 4), PhaseRuntime, KindOutOfBounds},
		{InvalidHandle("post_message", 7), PhaseRuntime, KindInvalidHandle},
		{InvalidInput(PhaseConfig, "bad"), PhaseConfig, KindInvalidInput},
		{Load("compile", nil), PhaseLoad, KindLoadFailed},
		{Wrap(PhaseInit, KindEntryFailed, nil, "x"), PhaseInit, KindEntryFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
				t.Errorf("got %s/%s, want %s/%s", tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}
