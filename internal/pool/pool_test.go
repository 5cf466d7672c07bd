package pool

import (
	"sync"
	"testing"
)

func TestAllocateUntilExhausted(t *testing.T) {
	p := New(3)
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		c := p.Allocate()
		if c == nil {
			t.Fatalf("unexpected nil at allocation %d", i)
		}
		if seen[c.Index] {
			t.Fatalf("slot %d handed out twice", c.Index)
		}
		seen[c.Index] = true
	}
	if c := p.Allocate(); c != nil {
		t.Fatal("expected pool exhaustion to return nil")
	}
}

func TestReleaseAllowsReuse(t *testing.T) {
	p := New(1)
	c := p.Allocate()
	if c == nil {
		t.Fatal("expected allocation to succeed")
	}
	_ = c.Nodename.Set([]byte("node7"))
	p.Release(c)
	c2 := p.Allocate()
	if c2 == nil {
		t.Fatal("expected reallocation to succeed")
	}
	if !c2.Nodename.Empty() {
		t.Fatal("expected Clear to reset nodename on reallocation")
	}
}

func TestReleaseWipesSecret(t *testing.T) {
	p := New(1)
	c := p.Allocate()
	if c == nil {
		t.Fatal("expected allocation to succeed")
	}
	if err := c.Secret.Set([]byte("swordfish")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Release(c)
	if !c.Secret.Empty() {
		t.Fatal("expected Release to wipe the secret buffer on close, not just on next allocation")
	}
}

func TestConcurrentAllocateRelease(t *testing.T) {
	p := New(8)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := p.Allocate()
			if c != nil {
				p.Release(c)
			}
		}()
	}
	wg.Wait()
	if p.Available() != 8 {
		t.Fatalf("expected all slots free, got %d available", p.Available())
	}
}
