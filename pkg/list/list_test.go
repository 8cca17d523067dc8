package list_test

import (
	"testing"

	"tuskdb/pkg/list"
)

func collect(l *list.List[int]) []int {
	var out []int
	l.Map(func(link *list.Link[int]) {
		out = append(out, link.GetValue())
	})
	return out
}

func checkOrder(t *testing.T, l *list.List[int], want []int) {
	t.Helper()
	got := collect(l)
	if len(got) != len(want) {
		t.Fatalf("List is %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List is %v, want %v", got, want)
		}
	}
}

func TestListPush(t *testing.T) {
	t.Parallel()
	l := list.New[int]()
	if l.PeekHead() != nil || l.PeekTail() != nil {
		t.Error("Fresh list has non-nil ends")
	}
	l.PushTail(2)
	l.PushTail(3)
	l.PushHead(1)
	checkOrder(t, l, []int{1, 2, 3})
	if l.PeekHead().GetValue() != 1 || l.PeekTail().GetValue() != 3 {
		t.Error("Head or tail hold the wrong values")
	}
}

func TestListPopSelf(t *testing.T) {
	t.Run("Middle", func(t *testing.T) {
		t.Parallel()
		l := list.New[int]()
		l.PushTail(1)
		mid := l.PushTail(2)
		l.PushTail(3)
		mid.PopSelf()
		checkOrder(t, l, []int{1, 3})
	})
	t.Run("Head", func(t *testing.T) {
		t.Parallel()
		l := list.New[int]()
		head := l.PushTail(1)
		l.PushTail(2)
		head.PopSelf()
		checkOrder(t, l, []int{2})
		if l.PeekHead().GetValue() != 2 {
			t.Error("Head was not updated")
		}
	})
	t.Run("Tail", func(t *testing.T) {
		t.Parallel()
		l := list.New[int]()
		l.PushTail(1)
		tail := l.PushTail(2)
		tail.PopSelf()
		checkOrder(t, l, []int{1})
		if l.PeekTail().GetValue() != 1 {
			t.Error("Tail was not updated")
		}
	})
	t.Run("Only", func(t *testing.T) {
		t.Parallel()
		l := list.New[int]()
		only := l.PushTail(1)
		only.PopSelf()
		if l.PeekHead() != nil || l.PeekTail() != nil {
			t.Error("Emptied list has non-nil ends")
		}
		// Popping an already-popped link is a no-op.
		only.PopSelf()
	})
}

func TestListFind(t *testing.T) {
	t.Parallel()
	l := list.New[int]()
	for i := 1; i <= 5; i++ {
		l.PushTail(i * 10)
	}
	found := l.Find(func(link *list.Link[int]) bool {
		return link.GetValue() == 30
	})
	if found == nil || found.GetValue() != 30 {
		t.Error("Find missed a present value")
	}
	missing := l.Find(func(link *list.Link[int]) bool {
		return link.GetValue() == 99
	})
	if missing != nil {
		t.Error("Find returned a link for an absent value")
	}
}
