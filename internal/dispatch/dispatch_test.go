package dispatch_test

import (
	"sync"
	"testing"
	"time"

	"github.com/kohtzk/mediaplayer-go/internal/dispatch"
)

func TestPostRunsInOrder(t *testing.T) {
	d := dispatch.New()
	defer d.Shutdown()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		if !d.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}) {
			t.Fatalf("Post(%d) rejected", i)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
}

func TestCallHappensBefore(t *testing.T) {
	d := dispatch.New()
	defer d.Shutdown()

	// Call must not return before the closure's effects are visible.
	var x int
	if !d.Call(func() { x = 42 }) {
		t.Fatal("Call rejected")
	}
	if x != 42 {
		t.Errorf("x = %d, want 42", x)
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	d := dispatch.New()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 50; i++ {
		d.Post(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if ran != 50 {
		t.Errorf("ran = %d, want 50 (shutdown must drain pending work)", ran)
	}
}

func TestPostAfterShutdownRejected(t *testing.T) {
	d := dispatch.New()
	d.Shutdown()

	if d.Post(func() { t.Error("closure ran after shutdown") }) {
		t.Error("Post accepted after shutdown")
	}
	if d.Call(func() { t.Error("closure ran after shutdown") }) {
		t.Error("Call accepted after shutdown")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	d := dispatch.New()
	done := make(chan struct{})
	go func() {
		d.Shutdown()
		d.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("double Shutdown hung")
	}
}

func TestConcurrentPosters(t *testing.T) {
	d := dispatch.New()

	var mu sync.Mutex
	ran := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				d.Post(func() {
					mu.Lock()
					ran++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if ran != 800 {
		t.Errorf("ran = %d, want 800", ran)
	}
}
