package btree_test

import (
	"testing"
)

// Begin on an empty tree yields a terminal iterator.
func TestIteratorEmptyTree(t *testing.T) {
	index, bpm := setupBTree(t, 3, 3)
	it, err := index.Begin()
	if err != nil {
		t.Fatal("Begin failed:", err)
	}
	if !it.IsEnd() {
		t.Error("Iterator over empty tree is not terminal")
	}
	if _, err := it.GetEntry(); err == nil {
		t.Error("GetEntry on terminal iterator did not error")
	}
	it.Close()
	checkInvariants(t, index, bpm)
}

// Begin enumerates every key in ascending order across leaf boundaries.
func TestIteratorFullScan(t *testing.T) {
	index, bpm := setupBTree(t, 3, 3)
	const n = 300
	for i := int64(0); i < n; i++ {
		insertEntry(t, index, i)
	}
	it, err := index.Begin()
	if err != nil {
		t.Fatal("Begin failed:", err)
	}
	count := int64(0)
	for !it.IsEnd() {
		e, err := it.GetEntry()
		if err != nil {
			t.Fatal("GetEntry failed:", err)
		}
		if e.Key != count || e.Value != generateValue(count) {
			t.Fatalf("Iterator yielded (%d, %d), want (%d, %d)", e.Key, e.Value, count, generateValue(count))
		}
		count++
		if it.Next() {
			break
		}
	}
	if count != n {
		t.Errorf("Iterator yielded %d entries, want %d", count, n)
	}
	it.Close()
	checkInvariants(t, index, bpm)
}

// BeginAt positions at the first key >= the requested key, including when
// the exact key is absent.
func TestIteratorBeginAt(t *testing.T) {
	index, bpm := setupBTree(t, 3, 3)
	// Even keys only.
	for i := int64(0); i < 100; i += 2 {
		insertEntry(t, index, i)
	}

	tests := map[string]struct {
		startKey int64
		wantKey  int64
	}{
		"ExactMatch":  {40, 40},
		"BetweenKeys": {41, 42},
		"BeforeAll":   {-5, 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			it, err := index.BeginAt(tt.startKey)
			if err != nil {
				t.Fatal("BeginAt failed:", err)
			}
			defer it.Close()
			e, err := it.GetEntry()
			if err != nil {
				t.Fatal("GetEntry failed:", err)
			}
			if e.Key != tt.wantKey {
				t.Errorf("BeginAt(%d) positioned at key %d, want %d", tt.startKey, e.Key, tt.wantKey)
			}
		})
	}

	// Past the last key the iterator starts terminal.
	it, err := index.BeginAt(99)
	if err != nil {
		t.Fatal("BeginAt failed:", err)
	}
	if !it.IsEnd() {
		t.Error("BeginAt past the last key is not terminal")
	}
	it.Close()
	checkInvariants(t, index, bpm)
}

// ScanRange returns exactly the keys in [start, end).
func TestScanRange(t *testing.T) {
	index, bpm := setupBTree(t, 3, 3)
	for i := int64(0); i < 100; i++ {
		insertEntry(t, index, i)
	}
	results, err := index.ScanRange(25, 75)
	if err != nil {
		t.Fatal("ScanRange failed:", err)
	}
	if len(results) != 50 {
		t.Fatalf("ScanRange returned %d entries, want 50", len(results))
	}
	for i, e := range results {
		if e.Key != int64(25+i) {
			t.Errorf("ScanRange[%d] has key %d, want %d", i, e.Key, 25+i)
		}
	}
	if _, err := index.ScanRange(75, 25); err == nil {
		t.Error("ScanRange with inverted bounds did not error")
	}
	checkInvariants(t, index, bpm)
}
