package hash

import "github.com/pkg/errors"

// Verify checks the extendible-hashing structural invariants: the directory
// holds exactly 2^globalDepth slots, every bucket with local depth d is
// referenced by exactly 2^(globalDepth-d) slots, and every key lives in a
// bucket whose slot indices agree with the key's hash in the low d bits.
// Meant for tests and workload drivers at quiescent points; it does not
// serialize against concurrent inserts.
func (table *Table[K, V]) Verify() error {
	// Snapshot the directory under the table latch, then inspect buckets
	// without it (bucket latches nest before the table latch).
	table.mtx.Lock()
	globalDepth := table.globalDepth
	bucketCount := table.bucketCount
	dirs := make([]*bucket[K, V], len(table.dirs))
	copy(dirs, table.dirs)
	table.mtx.Unlock()

	if len(dirs) != 1<<globalDepth {
		return errors.Errorf("hash: directory has %d slots, want %d",
			len(dirs), 1<<globalDepth)
	}

	refs := make(map[*bucket[K, V]][]int)
	for i, b := range dirs {
		refs[b] = append(refs[b], i)
	}
	if len(refs) != bucketCount {
		return errors.Errorf("hash: %d distinct buckets, count says %d",
			len(refs), bucketCount)
	}
	for b, slots := range refs {
		b.mtx.Lock()
		depth := b.localDepth
		items := make([]K, 0, len(b.items))
		for k := range b.items {
			items = append(items, k)
		}
		b.mtx.Unlock()

		if depth > globalDepth {
			return errors.Errorf("hash: local depth %d exceeds global depth %d",
				depth, globalDepth)
		}
		if want := 1 << (globalDepth - depth); len(slots) != want {
			return errors.Errorf("hash: bucket with local depth %d has %d slots, want %d",
				depth, len(slots), want)
		}
		// All slots referencing this bucket agree in the low depth bits, and
		// every stored key hashes into that slot class.
		lowMask := (uint64(1) << depth) - 1
		low := uint64(slots[0]) & lowMask
		for _, s := range slots {
			if uint64(s)&lowMask != low {
				return errors.Errorf("hash: slots %v disagree in low %d bits", slots, depth)
			}
		}
		for _, k := range items {
			if table.hasher(k)&lowMask != low {
				return errors.Errorf("hash: key %v stored in wrong bucket", k)
			}
		}
	}
	return nil
}
