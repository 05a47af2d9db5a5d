package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMultiplexerPreservesPerProducerOrder(t *testing.T) {
	mux := NewMultiplexer(4)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			_ = mux.Send(ctx, ModelResponse("m1", string(rune('a'+i))))
		}
	}()
	go func() {
		wg.Wait()
		mux.Close()
	}()

	var got []string
	for ev := range mux.Events() {
		got = append(got, ev.Content)
	}

	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMultiplexerSendBlocksWhenFull(t *testing.T) {
	mux := NewMultiplexer(1)
	ctx := context.Background()

	if err := mux.Send(ctx, Complete()); err != nil {
		t.Fatalf("first send should not block: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = mux.Send(ctx, Complete())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second send should have blocked on a full buffer")
	case <-time.After(30 * time.Millisecond):
	}

	<-mux.Events() // drain one slot
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("second send should have completed once a slot freed up")
	}
}

func TestMultiplexerSendRespectsCancellation(t *testing.T) {
	mux := NewMultiplexer(1)
	_ = mux.Send(context.Background(), Complete()) // fill the buffer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := mux.Send(ctx, Complete()); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
