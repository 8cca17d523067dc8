package btree

import (
	"fmt"
	"sort"

	"tuskdb/pkg/buffer"
)

// internalNode is the view over a page holding an internal node: a dense
// array of (key, child page id) pairs. The pair at index 0 carries the
// leftmost child and its key slot is a placeholder that lookups never
// consult. For every index i >= 1 the key is the smallest key reachable
// through the child at i.
type internalNode struct {
	treeNode
}

func asInternal(page *buffer.Page) internalNode {
	return internalNode{treeNode{page}}
}

// internalPairPos returns the page offset to the pair at the given index.
func internalPairPos(index int64) int64 {
	return INTERNAL_NODE_HEADER_SIZE + index*ENTRYSIZE
}

// getKeyAt returns the key of the pair at the given index.
func (node internalNode) getKeyAt(index int64) int64 {
	return readField(node.page, internalPairPos(index))
}

func (node internalNode) setKeyAt(index int64, key int64) {
	writeField(node.page, internalPairPos(index), key)
}

// getChildAt returns the child page id of the pair at the given index.
func (node internalNode) getChildAt(index int64) int64 {
	return readField(node.page, internalPairPos(index)+ENTRYSIZE/2)
}

func (node internalNode) setChildAt(index int64, pageID int64) {
	writeField(node.page, internalPairPos(index)+ENTRYSIZE/2, pageID)
}

func (node internalNode) setPairAt(index int64, key int64, child int64) {
	node.setKeyAt(index, key)
	node.setChildAt(index, child)
}

// lookup returns the child page id to descend into for the given key: the
// child of the last index whose key <= key, starting from index 1.
func (node internalNode) lookup(key int64, cmp Comparator) int64 {
	size := node.size()
	// First index in [1, size) whose key > key; descend one left of it.
	idx := 1 + int64(sort.Search(
		int(size-1),
		func(i int) bool {
			return cmp(node.getKeyAt(int64(i)+1), key) > 0
		},
	))
	return node.getChildAt(idx - 1)
}

// childIndex returns the index whose child equals the given page id, or -1.
func (node internalNode) childIndex(pageID int64) int64 {
	for i := int64(0); i < node.size(); i++ {
		if node.getChildAt(i) == pageID {
			return i
		}
	}
	return -1
}

// populateNewRoot fills a fresh root with two children separated by one key.
func (node internalNode) populateNewRoot(left int64, key int64, right int64) {
	node.setChildAt(0, left)
	node.setPairAt(1, key, right)
	node.setSize(2)
}

// insertNodeAfter inserts (key, newChild) immediately after the pair whose
// child is oldChild.
func (node internalNode) insertNodeAfter(oldChild int64, key int64, newChild int64) {
	insertPos := node.childIndex(oldChild) + 1
	if insertPos == 0 {
		panic(fmt.Sprintf("btree: page %d is not a child of page %d", oldChild, node.pid()))
	}
	size := node.size()
	for i := size - 1; i >= insertPos; i-- {
		node.setPairAt(i+1, node.getKeyAt(i), node.getChildAt(i))
	}
	node.setPairAt(insertPos, key, newChild)
	node.setSize(size + 1)
}

// removeAt deletes the pair at the given index, keeping the rest dense.
func (node internalNode) removeAt(index int64) {
	size := node.size()
	for i := index + 1; i < size; i++ {
		node.setPairAt(i-1, node.getKeyAt(i), node.getChildAt(i))
	}
	node.setSize(size - 1)
}

// adoptChild rewrites a child's parent pointer. The caller's latch chain
// guarantees no other writer can reach the child.
func (node internalNode) adoptChild(bpm *buffer.Manager, childID int64) error {
	childPage, err := bpm.FetchPage(childID)
	if err != nil {
		return err
	}
	treeNode{childPage}.setParent(node.pid())
	return bpm.UnpinPage(childID, true)
}

// moveHalfTo moves the upper half of this overflowing node's pairs into an
// empty sibling, rewriting each moved child's parent pointer.
func (node internalNode) moveHalfTo(sibling internalNode, bpm *buffer.Manager) error {
	size := node.size()
	mid := size / 2
	for i := mid; i < size; i++ {
		sibling.setPairAt(i-mid, node.getKeyAt(i), node.getChildAt(i))
		if err := sibling.adoptChild(bpm, node.getChildAt(i)); err != nil {
			return err
		}
	}
	sibling.setSize(size - mid)
	node.setSize(mid)
	return nil
}

// moveAllTo appends every pair of this node to the recipient (its left
// sibling), pulling the parent's separator key down as the key of the first
// moved pair and rewriting the moved children's parent pointers.
func (node internalNode) moveAllTo(recipient internalNode, separator int64, bpm *buffer.Manager) error {
	node.setKeyAt(0, separator)
	size := node.size()
	start := recipient.size()
	for i := int64(0); i < size; i++ {
		recipient.setPairAt(start+i, node.getKeyAt(i), node.getChildAt(i))
		if err := recipient.adoptChild(bpm, node.getChildAt(i)); err != nil {
			return err
		}
	}
	recipient.setSize(start + size)
	node.setSize(0)
	return nil
}

// removeFirst pops and returns the node's first pair.
func (node internalNode) removeFirst() (key int64, child int64) {
	key, child = node.getKeyAt(0), node.getChildAt(0)
	size := node.size()
	for i := int64(1); i < size; i++ {
		node.setPairAt(i-1, node.getKeyAt(i), node.getChildAt(i))
	}
	node.setSize(size - 1)
	return key, child
}

// removeLast pops and returns the node's last pair.
func (node internalNode) removeLast() (key int64, child int64) {
	size := node.size()
	key, child = node.getKeyAt(size-1), node.getChildAt(size-1)
	node.setSize(size - 1)
	return key, child
}

// append adds a pair after the node's current last pair.
func (node internalNode) append(key int64, child int64) {
	size := node.size()
	node.setPairAt(size, key, child)
	node.setSize(size + 1)
}

// prepend adds a pair before the node's current first pair.
func (node internalNode) prepend(key int64, child int64) {
	size := node.size()
	for i := size - 1; i >= 0; i-- {
		node.setPairAt(i+1, node.getKeyAt(i), node.getChildAt(i))
	}
	node.setPairAt(0, key, child)
	node.setSize(size + 1)
}
