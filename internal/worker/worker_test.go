package worker

import (
	"sync"
	"testing"
	"time"
)

func TestPushAndHandle(t *testing.T) {
	var mu sync.Mutex
	var got []int
	done := make(chan struct{}, 10)

	p := New(4, func(idx int) {
		mu.Lock()
		got = append(got, idx)
		mu.Unlock()
		done <- struct{}{}
	})
	p.Start(4)
	defer p.Stop()

	for _, idx := range []int{0, 1, 2, 3} {
		p.Push(idx)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for handle calls")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 4 {
		t.Fatalf("expected 4 handled indices, got %d", len(got))
	}
}

func TestDrainAndClose(t *testing.T) {
	p := New(4, func(int) {})
	p.Push(0)
	p.Push(1)
	var closed []int
	p.DrainAndClose(func(idx int) { closed = append(closed, idx) })
	if len(closed) != 2 {
		t.Fatalf("expected 2 drained, got %d", len(closed))
	}
	if p.QueueLen() != 0 {
		t.Fatalf("expected empty queue after drain, got %d", p.QueueLen())
	}
}

func TestStopWaitsForWorkers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := New(2, func(idx int) {
		close(started)
		<-release
	})
	p.Start(1)
	p.Push(0)
	<-started

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before in-flight handler finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after handler finished")
	}
}
