package pipeline_test

import (
	"testing"
	"time"

	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := pipeline.NewBus()

	for i := 0; i < 50; i++ {
		bus.Emit(pipeline.Message{Kind: pipeline.MessageBuffering, Percent: i})
	}

	for i := 0; i < 50; i++ {
		select {
		case m := <-bus.C():
			if m.Percent != i {
				t.Fatalf("message %d has percent %d", i, m.Percent)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	bus.Close()
}

func TestBusEmitNeverBlocks(t *testing.T) {
	bus := pipeline.NewBus()

	// No consumer; a burst of emits must still return promptly.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Emit(pipeline.Message{Kind: pipeline.MessageEOS})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked without a consumer")
	}

	// Drain so Close can finish.
	go func() {
		for range bus.C() {
		}
	}()
	bus.Close()
}

func TestBusCloseDrainsThenCloses(t *testing.T) {
	bus := pipeline.NewBus()
	bus.Emit(pipeline.Message{Kind: pipeline.MessageEOS})

	go bus.Close()

	select {
	case m, ok := <-bus.C():
		if !ok || m.Kind != pipeline.MessageEOS {
			t.Fatalf("got (%v, %v), want queued EOS", m, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued message")
	}
	select {
	case _, ok := <-bus.C():
		if ok {
			t.Fatal("expected closed channel after drain")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}
}
