package btree

import (
	"fmt"

	"tuskdb/pkg/concurrency"
	"tuskdb/pkg/config"
)

// Remove deletes the entry with the given key, if present. Underflowing
// nodes are refilled from a sibling or merged into one; an emptied root
// shrinks the tree. A nil context is accepted; one is created for the
// operation.
func (tree *BTree) Remove(key int64, txn *concurrency.Transaction) error {
	if txn == nil {
		txn = concurrency.NewTransaction()
	}
	tree.lockRoot(true, txn)
	if tree.rootID == config.InvalidPageID {
		tree.tryUnlockRoot(true, txn)
		return nil
	}
	tree.tryUnlockRoot(true, txn)

	leaf, err := tree.findLeaf(key, false, opDelete, txn)
	if err != nil {
		return err
	}
	if leaf.page == nil {
		// Emptied by a concurrent remover between the root check and the
		// descent's own root lock.
		return nil
	}
	if size := leaf.remove(key, tree.cmp); size < leaf.minSize() {
		tree.coalesceOrRedistribute(leaf.treeNode, txn)
	}
	tree.freePages(true, txn)
	return nil
}

// coalesceOrRedistribute refills an underflowing node: merge with a sibling
// when both fit in one node, otherwise borrow one pair from it. Returns
// whether a page was marked for deletion: the node itself (an adjusted root,
// or a merge into its left sibling) or, when the node is the leftmost child,
// its right sibling merged into it.
func (tree *BTree) coalesceOrRedistribute(node treeNode, txn *concurrency.Transaction) bool {
	if node.isRoot() {
		if tree.adjustRoot(node) {
			txn.MarkDeleted(node.pid())
			return true
		}
		return false
	}

	// Reach the sibling through the (already write-latched) parent,
	// preferring the left sibling; the leftmost child borrows right.
	parentPage, err := tree.bpm.FetchPage(node.parent())
	if err != nil {
		panic(fmt.Sprintf("btree: parent page %d unavailable: %v", node.parent(), err))
	}
	parent := asInternal(parentPage)
	idx := parent.childIndex(node.pid())
	if idx < 0 {
		panic(fmt.Sprintf("btree: page %d is not a child of its parent %d", node.pid(), parent.pid()))
	}
	siblingIsRight := idx == 0
	siblingIdx := idx - 1
	if siblingIsRight {
		siblingIdx = 1
	}
	siblingPage, err := tree.bpm.FetchPage(parent.getChildAt(siblingIdx))
	if err != nil {
		tree.bpm.UnpinPage(parentPage.ID(), false)
		panic(fmt.Sprintf("btree: sibling page unavailable: %v", err))
	}
	siblingPage.WLock()
	txn.AddPage(siblingPage)
	sibling := treeNode{siblingPage}

	deleted := false
	if node.size()+sibling.size() <= node.maxSize() {
		tree.coalesce(node, sibling, parent, siblingIsRight, txn)
		deleted = true
	} else {
		tree.redistribute(node, sibling, parent, idx, siblingIsRight)
	}
	tree.bpm.UnpinPage(parentPage.ID(), true)
	return deleted
}

// coalesce merges the right-hand partner of a (node, sibling) pair into the
// left-hand one, removes the separator from the parent, and recurses if the
// parent in turn underflows.
func (tree *BTree) coalesce(node, sibling treeNode, parent internalNode, siblingIsRight bool, txn *concurrency.Transaction) {
	left, right := sibling, node
	if siblingIsRight {
		left, right = node, sibling
	}
	removeIdx := parent.childIndex(right.pid())
	if right.isLeaf() {
		leafNode{right}.moveAllTo(leafNode{left})
	} else {
		err := internalNode{right}.moveAllTo(internalNode{left}, parent.getKeyAt(removeIdx), tree.bpm)
		if err != nil {
			panic(fmt.Sprintf("btree: reparenting merged children: %v", err))
		}
	}
	txn.MarkDeleted(right.pid())
	parent.removeAt(removeIdx)
	if parent.size() <= parent.minSize() {
		tree.coalesceOrRedistribute(parent.treeNode, txn)
	}
}

// redistribute borrows one pair from the sibling: the left sibling's last
// pair moves to the node's front, or the right sibling's first pair moves to
// the node's end. The relevant separator in the parent is rewritten, and
// internal moves rewrite the moved child's parent pointer.
func (tree *BTree) redistribute(node, sibling treeNode, parent internalNode, idx int64, siblingIsRight bool) {
	if node.isLeaf() {
		from, to := leafNode{sibling}, leafNode{node}
		if siblingIsRight {
			to.append(from.removeFirst())
			// The right sibling lives at parent index 1 when node is the
			// leftmost child.
			parent.setKeyAt(1, from.getKeyAt(0))
		} else {
			to.prepend(from.removeLast())
			parent.setKeyAt(idx, to.getKeyAt(0))
		}
		return
	}
	from, to := internalNode{sibling}, internalNode{node}
	if siblingIsRight {
		// The old separator becomes the key of the borrowed child; the
		// sibling's next key rises to replace it.
		separator := parent.getKeyAt(1)
		_, child := from.removeFirst()
		to.append(separator, child)
		if err := to.adoptChild(tree.bpm, child); err != nil {
			panic(fmt.Sprintf("btree: reparenting borrowed child: %v", err))
		}
		parent.setKeyAt(1, from.getKeyAt(0))
	} else {
		// The old separator drops in above the node's previous first child;
		// the borrowed key becomes the new separator.
		separator := parent.getKeyAt(idx)
		key, child := from.removeLast()
		to.prepend(key, child)
		to.setKeyAt(1, separator)
		if err := to.adoptChild(tree.bpm, child); err != nil {
			panic(fmt.Sprintf("btree: reparenting borrowed child: %v", err))
		}
		parent.setKeyAt(idx, key)
	}
}

// adjustRoot handles underflow at the root: an internal root left with a
// single child promotes that child, and a leaf root left empty empties the
// tree. Returns whether the old root should be deleted. Called with the
// root-id latch still held from the descent.
func (tree *BTree) adjustRoot(oldRoot treeNode) bool {
	if oldRoot.isLeaf() {
		if oldRoot.size() > 0 {
			return false
		}
		tree.rootID = config.InvalidPageID
		tree.updateRoot()
		return true
	}
	if oldRoot.size() == 1 {
		childID := internalNode{oldRoot}.getChildAt(0)
		tree.rootID = childID
		tree.updateRoot()
		childPage, err := tree.bpm.FetchPage(childID)
		if err != nil {
			panic(fmt.Sprintf("btree: new root page %d unavailable: %v", childID, err))
		}
		(treeNode{childPage}).setParent(config.InvalidPageID)
		tree.bpm.UnpinPage(childID, true)
		return true
	}
	return false
}
