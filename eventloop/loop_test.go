package eventloop

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/canvas-harness/errors"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		l.Dispatch(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("callback %d ran at position %d", v, i)
		}
	}
}

func TestLoop_StopDrainsQueue(t *testing.T) {
	l := New()
	ran := 0
	for i := 0; i < 3; i++ {
		l.Dispatch(func() { ran++ })
	}
	l.Stop()

	l.Run(context.Background())
	if ran != 3 {
		t.Errorf("ran = %d, want 3", ran)
	}
	if l.Dispatch(func() {}) {
		t.Error("Dispatch after Stop should report false")
	}
	select {
	case <-l.Done():
	default:
		t.Error("Done should be closed after Run returns")
	}
}

func TestLoop_ContextCancelStops(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if l.Dispatch(func() {}) {
		t.Error("Dispatch after cancel should report false")
	}
}

func TestCall(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	want := stderrors.New("boom")
	if err := Call(ctx, l, func() error { return want }); err != want {
		t.Errorf("Call err = %v, want %v", err, want)
	}
	if err := Call(ctx, l, func() error { return nil }); err != nil {
		t.Errorf("Call err = %v", err)
	}
}

func TestCall_StoppedLoop(t *testing.T) {
	l := New()
	l.Stop()

	err := Call(context.Background(), l, func() error { return nil })
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindClosed}) {
		t.Errorf("err = %v, want closed error", err)
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	l := New() // never run
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Call(ctx, l, func() error { return nil }); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestInline(t *testing.T) {
	ran := false
	if !Inline.Dispatch(func() { ran = true }) || !ran {
		t.Error("Inline should run the callback immediately")
	}
}
