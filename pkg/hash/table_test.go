package hash_test

import (
	"math/rand"
	"sync"
	"testing"

	"tuskdb/pkg/hash"
)

// identityHasher makes bucket addressing predictable in tests.
func identityHasher(key int64) uint64 {
	return uint64(key)
}

func setupTable(t *testing.T, bucketCap int, hasher func(int64) uint64) *hash.Table[int64, int64] {
	t.Parallel()
	if hasher == nil {
		hasher = hash.XxHasher
	}
	return hash.New[int64, int64](bucketCap, hasher)
}

func checkFind(t *testing.T, table *hash.Table[int64, int64], key, want int64) {
	t.Helper()
	value, found := table.Find(key)
	if !found {
		t.Errorf("Failed to find inserted key %d", key)
		return
	}
	if value != want {
		t.Errorf("Key %d has value %d, want %d", key, value, want)
	}
}

// Four keys addressing slots 0b00..0b11 with bucket capacity 2 drive the
// directory from global depth 0 to 2, with four distinct buckets of local
// depth 2.
func TestTableDirectoryDoubling(t *testing.T) {
	table := setupTable(t, 2, identityHasher)
	if table.GlobalDepth() != 0 {
		t.Fatalf("Fresh table has global depth %d, want 0", table.GlobalDepth())
	}
	for _, key := range []int64{0, 1, 2, 3} {
		table.Insert(key, key*10)
	}
	if table.GlobalDepth() != 2 {
		t.Errorf("Global depth is %d, want 2", table.GlobalDepth())
	}
	if table.BucketCount() != 4 {
		t.Errorf("Bucket count is %d, want 4", table.BucketCount())
	}
	for _, key := range []int64{0, 1, 2, 3} {
		checkFind(t, table, key, key*10)
	}
	if err := table.Verify(); err != nil {
		t.Error("Invariant violation:", err)
	}
}

// Inserting a present key replaces its value without growing the table.
func TestTableReplaceOnDuplicate(t *testing.T) {
	table := setupTable(t, 8, nil)
	table.Insert(7, 1)
	before := table.Len()
	table.Insert(7, 2)
	checkFind(t, table, 7, 2)
	if table.Len() != before {
		t.Errorf("Replacing a key changed Len from %d to %d", before, table.Len())
	}
}

func TestTableInsertFindRemove(t *testing.T) {
	table := setupTable(t, 8, nil)
	const n = 5000
	for i := int64(0); i < n; i++ {
		table.Insert(i, i*3)
	}
	// Every inserted key is returned by Find.
	for i := int64(0); i < n; i++ {
		checkFind(t, table, i, i*3)
	}
	if table.Len() != n {
		t.Errorf("Len is %d, want %d", table.Len(), n)
	}
	if err := table.Verify(); err != nil {
		t.Fatal("Invariant violation:", err)
	}
	// Remove the even keys; odd keys stay findable.
	for i := int64(0); i < n; i += 2 {
		if !table.Remove(i) {
			t.Errorf("Remove(%d) found nothing", i)
		}
	}
	for i := int64(0); i < n; i++ {
		_, found := table.Find(i)
		if want := i%2 == 1; found != want {
			t.Errorf("Find(%d) = %v, want %v", i, found, want)
		}
	}
	// Removing an absent key reports false.
	if table.Remove(n + 1) {
		t.Error("Remove of an absent key reported true")
	}
	if err := table.Verify(); err != nil {
		t.Error("Invariant violation after removals:", err)
	}
}

// Murmur and xxHash tables must agree on contents regardless of how they
// scatter keys.
func TestTableHasherIndependence(t *testing.T) {
	xx := setupTable(t, 4, hash.XxHasher)
	mm := hash.New[int64, int64](4, hash.MurmurHasher)
	keys := rand.Perm(2000)
	for _, k := range keys {
		xx.Insert(int64(k), int64(k))
		mm.Insert(int64(k), int64(k))
	}
	for _, k := range keys {
		checkFind(t, xx, int64(k), int64(k))
		checkFind(t, mm, int64(k), int64(k))
	}
	if err := xx.Verify(); err != nil {
		t.Error("xxhash table invariant violation:", err)
	}
	if err := mm.Verify(); err != nil {
		t.Error("murmur table invariant violation:", err)
	}
}

// Concurrent inserters over disjoint ranges, then concurrent readers and
// removers; the table must stay consistent throughout.
func TestTableConcurrent(t *testing.T) {
	table := setupTable(t, 8, nil)
	const (
		numThreads = 8
		perThread  = 2000
	)
	var wg sync.WaitGroup
	for w := 0; w < numThreads; w++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perThread; i++ {
				key := base*perThread + i
				table.Insert(key, key)
			}
		}(int64(w))
	}
	wg.Wait()
	if table.Len() != numThreads*perThread {
		t.Fatalf("Len is %d, want %d", table.Len(), numThreads*perThread)
	}
	if err := table.Verify(); err != nil {
		t.Fatal("Invariant violation after concurrent inserts:", err)
	}
	for w := 0; w < numThreads; w++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perThread; i++ {
				key := base*perThread + i
				if i%2 == 0 {
					table.Remove(key)
				} else if _, found := table.Find(key); !found {
					t.Errorf("Lost key %d", key)
				}
			}
		}(int64(w))
	}
	wg.Wait()
	if t.Failed() {
		t.FailNow()
	}
	if err := table.Verify(); err != nil {
		t.Error("Invariant violation after concurrent removes:", err)
	}
}
