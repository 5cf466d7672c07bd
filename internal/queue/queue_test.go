package queue

import "testing"

func TestPushPopOrder(t *testing.T) {
	q := New(8)
	for _, i := range []int{3, 1, 5} {
		q.PushBack(i)
	}
	want := []int{3, 1, 5}
	for _, w := range want {
		got, ok := q.PopFront()
		if !ok || got != w {
			t.Fatalf("PopFront: got (%d, %v), want %d", got, ok, w)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len %d", q.Len())
	}
	if _, ok := q.PopFront(); ok {
		t.Fatal("expected PopFront on empty queue to report false")
	}
}

func TestRemoveMiddle(t *testing.T) {
	q := New(8)
	for _, i := range []int{0, 1, 2, 3} {
		q.PushBack(i)
	}
	q.Remove(1)
	if q.Linked(1) {
		t.Fatal("expected 1 to be unlinked")
	}
	var order []int
	for idx, ok := q.First(); ok; idx, ok = q.NextOf(idx) {
		order = append(order, idx)
	}
	want := []int{0, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("unexpected order: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order: %v", order)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected len 3, got %d", q.Len())
	}
}

func TestRemoveHeadAndTail(t *testing.T) {
	q := New(4)
	q.PushBack(0)
	q.PushBack(1)
	q.PushBack(2)
	q.Remove(0) // head
	q.Remove(2) // tail
	got, ok := q.PopFront()
	if !ok || got != 1 {
		t.Fatalf("expected remaining element 1, got (%d, %v)", got, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestRemoveNotLinkedIsNoop(t *testing.T) {
	q := New(4)
	q.PushBack(0)
	q.Remove(1) // never linked
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}
}

func TestRepushAfterRemove(t *testing.T) {
	q := New(4)
	q.PushBack(0)
	q.Remove(0)
	q.PushBack(0)
	if q.Len() != 1 || !q.Linked(0) {
		t.Fatal("expected element 0 to be linked again")
	}
}
