package fanout

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	h := NewHub[int](4)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	if n := h.Publish(7); n != 2 {
		t.Fatalf("Publish delivered=%d, want 2", n)
	}
	if got := <-a; got != 7 {
		t.Fatalf("a got %d, want 7", got)
	}
	if got := <-b; got != 7 {
		t.Fatalf("b got %d, want 7", got)
	}
}

func TestHub_FullSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub[string](1)
	_, cancel := h.Subscribe()
	defer cancel()

	h.Publish("first")
	done := make(chan struct{})
	go func() {
		h.Publish("second")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub[int](1)
	ch, cancel := h.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if h.Len() != 0 {
		t.Fatalf("Len=%d, want 0", h.Len())
	}
}

func TestHub_SubscribeContextEndsWithContext(t *testing.T) {
	h := NewHub[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.SubscribeContext(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription outlived its context")
	}
}

func TestHub_CloseRejectsNewSubscribers(t *testing.T) {
	h := NewHub[int](1)
	h.Close()
	ch, cancel := h.Subscribe()
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after Close")
	}
}
