package buffer_test

import (
	"testing"

	"tuskdb/pkg/buffer"
)

// Victim pops elements oldest-first in insertion order.
func TestReplacerVictimOrder(t *testing.T) {
	t.Parallel()
	lru := buffer.NewLRUReplacer[int]()
	for i := 1; i <= 5; i++ {
		lru.Insert(i)
	}
	for want := 1; want <= 5; want++ {
		got, ok := lru.Victim()
		if !ok {
			t.Fatalf("Victim ran dry at %d", want)
		}
		if got != want {
			t.Errorf("Victim returned %d, want %d", got, want)
		}
	}
	if _, ok := lru.Victim(); ok {
		t.Error("Victim on an empty selector reported success")
	}
}

// Re-inserting moves an element to the newest end without duplicating it.
func TestReplacerReinsert(t *testing.T) {
	t.Parallel()
	lru := buffer.NewLRUReplacer[int]()
	lru.Insert(1)
	lru.Insert(2)
	lru.Insert(3)
	lru.Insert(1) // 1 is now the newest
	if lru.Size() != 3 {
		t.Errorf("Size is %d, want 3", lru.Size())
	}
	wantOrder := []int{2, 3, 1}
	for _, want := range wantOrder {
		got, ok := lru.Victim()
		if !ok || got != want {
			t.Errorf("Victim returned (%d, %v), want %d", got, ok, want)
		}
	}
}

// Erase removes an element so Victim skips it; erasing twice reports false.
func TestReplacerErase(t *testing.T) {
	t.Parallel()
	lru := buffer.NewLRUReplacer[int]()
	lru.Insert(1)
	lru.Insert(2)
	lru.Insert(3)
	if !lru.Erase(2) {
		t.Error("Erase of a present element reported false")
	}
	if lru.Erase(2) {
		t.Error("Erase of an absent element reported true")
	}
	if lru.Size() != 2 {
		t.Errorf("Size is %d, want 2", lru.Size())
	}
	got, _ := lru.Victim()
	if got != 1 {
		t.Errorf("Victim returned %d, want 1", got)
	}
	got, _ = lru.Victim()
	if got != 3 {
		t.Errorf("Victim returned %d, want 3", got)
	}
}

// Size tracks inserts minus erases and victims.
func TestReplacerSize(t *testing.T) {
	t.Parallel()
	lru := buffer.NewLRUReplacer[int]()
	if lru.Size() != 0 {
		t.Errorf("Fresh selector has size %d", lru.Size())
	}
	for i := 0; i < 10; i++ {
		lru.Insert(i)
	}
	lru.Erase(4)
	lru.Victim()
	if lru.Size() != 8 {
		t.Errorf("Size is %d, want 8", lru.Size())
	}
}
