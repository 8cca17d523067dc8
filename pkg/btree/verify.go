package btree

import (
	"github.com/pkg/errors"

	"tuskdb/pkg/config"
)

// Verify walks the whole tree and checks its structural invariants: size
// bounds on every non-root node, key ordering within nodes, separator keys
// equal to the smallest key of their subtree, uniform leaf depth, and a leaf
// chain that enumerates every key exactly once in ascending order. Meant for
// tests and workload drivers at quiescent points; pages are pinned but not
// latched.
func (tree *BTree) Verify() error {
	tree.rootLatch.RLock()
	rootID := tree.rootID
	tree.rootLatch.RUnlock()
	if rootID == config.InvalidPageID {
		return nil
	}
	stats := &verifyStats{}
	if _, _, err := tree.verifyNode(rootID, true, 0, stats); err != nil {
		return err
	}
	return tree.verifyChain(stats.leftmostLeaf, stats.keyCount)
}

type verifyStats struct {
	leafDepth    int64 // depth of the first leaf reached
	sawLeaf      bool
	keyCount     int64
	leftmostLeaf int64
}

// verifyNode checks one subtree, returning the smallest and largest keys it
// contains.
func (tree *BTree) verifyNode(pageID int64, isRoot bool, depth int64, stats *verifyStats) (smallest, largest int64, err error) {
	page, err := tree.bpm.FetchPage(pageID)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "btree: verify fetching page %d", pageID)
	}
	defer tree.bpm.UnpinPage(pageID, false)

	node := treeNode{page}
	size := node.size()
	if !isRoot && (size < node.minSize() || size > node.maxSize()) {
		return 0, 0, errors.Errorf("btree: page %d size %d outside [%d, %d]",
			pageID, size, node.minSize(), node.maxSize())
	}

	if node.isLeaf() {
		leaf := asLeaf(page)
		if size == 0 {
			return 0, 0, errors.Errorf("btree: leaf page %d is empty", pageID)
		}
		for i := int64(1); i < size; i++ {
			if tree.cmp(leaf.getKeyAt(i-1), leaf.getKeyAt(i)) >= 0 {
				return 0, 0, errors.Errorf("btree: leaf page %d keys out of order", pageID)
			}
		}
		if !stats.sawLeaf {
			stats.sawLeaf = true
			stats.leafDepth = depth
			stats.leftmostLeaf = pageID
		} else if stats.leafDepth != depth {
			return 0, 0, errors.Errorf("btree: leaf page %d at depth %d, expected %d",
				pageID, depth, stats.leafDepth)
		}
		stats.keyCount += size
		return leaf.getKeyAt(0), leaf.getKeyAt(size - 1), nil
	}

	internal := asInternal(page)
	if size < 2 {
		return 0, 0, errors.Errorf("btree: internal page %d has %d children", pageID, size)
	}
	for i := int64(0); i < size; i++ {
		childSmallest, childLargest, err := tree.verifyNode(internal.getChildAt(i), false, depth+1, stats)
		if err != nil {
			return 0, 0, err
		}
		if i == 0 {
			smallest = childSmallest
		} else {
			// The separator is the smallest key reachable through its child.
			if tree.cmp(internal.getKeyAt(i), childSmallest) != 0 {
				return 0, 0, errors.Errorf("btree: page %d separator %d != child %d smallest key %d",
					pageID, internal.getKeyAt(i), internal.getChildAt(i), childSmallest)
			}
			if tree.cmp(largest, childSmallest) >= 0 {
				return 0, 0, errors.Errorf("btree: page %d subtrees overlap at index %d", pageID, i)
			}
		}
		largest = childLargest
	}
	return smallest, largest, nil
}

// verifyChain walks the leaf chain from the leftmost leaf, checking that it
// yields exactly the tree's keys in strictly ascending order.
func (tree *BTree) verifyChain(leftmost int64, wantCount int64) error {
	count := int64(0)
	prevSet := false
	var prev int64
	for pageID := leftmost; pageID != config.InvalidPageID; {
		page, err := tree.bpm.FetchPage(pageID)
		if err != nil {
			return errors.Wrapf(err, "btree: verify fetching leaf %d", pageID)
		}
		leaf := asLeaf(page)
		for i := int64(0); i < leaf.size(); i++ {
			key := leaf.getKeyAt(i)
			if prevSet && tree.cmp(prev, key) >= 0 {
				tree.bpm.UnpinPage(pageID, false)
				return errors.Errorf("btree: leaf chain out of order at key %d", key)
			}
			prev, prevSet = key, true
			count++
		}
		next := leaf.next()
		tree.bpm.UnpinPage(pageID, false)
		pageID = next
	}
	if count != wantCount {
		return errors.Errorf("btree: leaf chain has %d keys, tree has %d", count, wantCount)
	}
	return nil
}
