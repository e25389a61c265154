package channel

import (
	"testing"
	"time"

	harness "github.com/wippyai/canvas-harness"
)

func recv(t *testing.T, p Port) (harness.Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-p.Messages():
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil, false
	}
}

func TestPipe_FIFOBothDirections(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	for _, s := range []string{"one", "two", "three"} {
		if err := a.Post(harness.Message(s)); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}
	_ = b.Post(harness.Message("reply"))

	for _, want := range []string{"one", "two", "three"} {
		msg, ok := recv(t, b)
		if !ok || string(msg) != want {
			t.Fatalf("got %q (ok=%v), want %q", msg, ok, want)
		}
	}
	if msg, _ := recv(t, a); string(msg) != "reply" {
		t.Errorf("got %q, want reply", msg)
	}
}

func TestPipe_CopySemantics(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	buf := harness.Message("abc")
	_ = a.Post(buf)
	buf[0] = 'X'

	msg, _ := recv(t, b)
	if string(msg) != "abc" {
		t.Errorf("receiver saw sender mutation: %q", msg)
	}
}

func TestPipe_CloseDrainsPendingToPeer(t *testing.T) {
	a, b := Pipe()
	defer b.Close()

	_ = a.Post(harness.Message("last words"))
	_ = a.Close()

	msg, ok := recv(t, b)
	if !ok || string(msg) != "last words" {
		t.Fatalf("got %q (ok=%v), want pending message", msg, ok)
	}
	if _, ok := recv(t, b); ok {
		t.Error("Messages should be closed after the peer closed")
	}
}

func TestPipe_PostAfterClose(t *testing.T) {
	a, b := Pipe()
	_ = a.Close()

	if err := a.Post(harness.Message("x")); err == nil {
		t.Error("Post on closed end should fail")
	}
	if err := b.Post(harness.Message("x")); err == nil {
		t.Error("Post towards closed end should fail")
	}
	if _, ok := recv(t, a); ok {
		t.Error("closed end should stop delivering")
	}
	_ = b.Close()
}

func TestPipe_CloseIdempotent(t *testing.T) {
	a, b := Pipe()
	_ = a.Close()
	_ = a.Close()
	_ = b.Close()
}

func TestInbox(t *testing.T) {
	in := NewInbox()

	for _, s := range []string{"a", "b"} {
		if err := in.Deliver(harness.Message(s)); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	in.Close()
	if err := in.Deliver(harness.Message("late")); err == nil {
		t.Error("Deliver after Close should fail")
	}

	var got []string
	for msg := range in.Messages() {
		got = append(got, string(msg))
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestInbox_Abandon(t *testing.T) {
	in := NewInbox()
	_ = in.Deliver(harness.Message("dropped"))
	in.Abandon()

	select {
	case _, ok := <-in.Messages():
		if ok {
			// the pump may have been mid-send; the channel must close right after
			if _, ok := <-in.Messages(); ok {
				t.Error("abandoned inbox kept delivering")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Messages not closed after Abandon")
	}
}
