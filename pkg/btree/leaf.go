package btree

import (
	"sort"

	"tuskdb/pkg/buffer"
	"tuskdb/pkg/entry"
)

// leafNode is the view over a page holding a leaf node: real data entries in
// key order, chained to the right sibling leaf.
type leafNode struct {
	treeNode
}

func asLeaf(page *buffer.Page) leafNode {
	return leafNode{treeNode{page}}
}

// leafEntryPos returns the page offset to the entry at the given index.
func leafEntryPos(index int64) int64 {
	return LEAF_NODE_HEADER_SIZE + index*ENTRYSIZE
}

// getEntry returns the entry stored at the given index.
func (node leafNode) getEntry(index int64) entry.Entry {
	startPos := leafEntryPos(index)
	return entry.Unmarshal(node.page.Data()[startPos : startPos+ENTRYSIZE])
}

// modifyEntry writes the given entry into the node's page at the given index.
func (node leafNode) modifyEntry(index int64, e entry.Entry) {
	node.page.Update(e.Marshal(), leafEntryPos(index), ENTRYSIZE)
}

// getKeyAt returns the key stored at the given index.
func (node leafNode) getKeyAt(index int64) int64 {
	return node.getEntry(index).Key
}

// next returns the page id of the right sibling leaf.
func (node leafNode) next() int64 {
	return readField(node.page, NEXT_PN_OFFSET)
}

func (node leafNode) setNext(pageID int64) {
	writeField(node.page, NEXT_PN_OFFSET, pageID)
}

// search returns the first index whose key >= the given key. If no key
// satisfies this condition, returns size.
func (node leafNode) search(key int64, cmp Comparator) int64 {
	return int64(sort.Search(
		int(node.size()),
		func(idx int) bool {
			return cmp(node.getKeyAt(int64(idx)), key) >= 0
		},
	))
}

// lookup returns the value stored under the given key, if present.
func (node leafNode) lookup(key int64, cmp Comparator) (int64, bool) {
	idx := node.search(key, cmp)
	if idx >= node.size() || cmp(node.getKeyAt(idx), key) != 0 {
		return 0, false
	}
	return node.getEntry(idx).Value, true
}

// insert places a new entry at its sorted position. The caller has already
// established the key is not present.
func (node leafNode) insert(key int64, value int64, cmp Comparator) {
	insertPos := node.search(key, cmp)
	size := node.size()
	for i := size - 1; i >= insertPos; i-- {
		node.modifyEntry(i+1, node.getEntry(i))
	}
	node.modifyEntry(insertPos, entry.New(key, value))
	node.setSize(size + 1)
}

// remove deletes the entry with the given key if present, returning the
// node's new size.
func (node leafNode) remove(key int64, cmp Comparator) int64 {
	size := node.size()
	deletePos := node.search(key, cmp)
	if deletePos >= size || cmp(node.getKeyAt(deletePos), key) != 0 {
		return size
	}
	for i := deletePos; i < size-1; i++ {
		node.modifyEntry(i, node.getEntry(i+1))
	}
	node.setSize(size - 1)
	return size - 1
}

// moveHalfTo moves the upper half of this overflowing node's entries into an
// empty sibling and links the sibling into the leaf chain after this node.
func (node leafNode) moveHalfTo(sibling leafNode) {
	size := node.size()
	mid := size / 2
	for i := mid; i < size; i++ {
		sibling.modifyEntry(i-mid, node.getEntry(i))
	}
	sibling.setSize(size - mid)
	node.setSize(mid)
	sibling.setNext(node.next())
	node.setNext(sibling.pid())
}

// moveAllTo appends every entry of this node to the recipient (its left
// sibling) and unlinks this node from the leaf chain.
func (node leafNode) moveAllTo(recipient leafNode) {
	size := node.size()
	start := recipient.size()
	for i := int64(0); i < size; i++ {
		recipient.modifyEntry(start+i, node.getEntry(i))
	}
	recipient.setSize(start + size)
	recipient.setNext(node.next())
	node.setSize(0)
}

// removeFirst pops and returns the node's first entry.
func (node leafNode) removeFirst() entry.Entry {
	first := node.getEntry(0)
	size := node.size()
	for i := int64(1); i < size; i++ {
		node.modifyEntry(i-1, node.getEntry(i))
	}
	node.setSize(size - 1)
	return first
}

// removeLast pops and returns the node's last entry.
func (node leafNode) removeLast() entry.Entry {
	size := node.size()
	last := node.getEntry(size - 1)
	node.setSize(size - 1)
	return last
}

// append adds an entry after the node's current last entry.
func (node leafNode) append(e entry.Entry) {
	size := node.size()
	node.modifyEntry(size, e)
	node.setSize(size + 1)
}

// prepend adds an entry before the node's current first entry.
func (node leafNode) prepend(e entry.Entry) {
	size := node.size()
	for i := size - 1; i >= 0; i-- {
		node.modifyEntry(i+1, node.getEntry(i))
	}
	node.modifyEntry(0, e)
	node.setSize(size + 1)
}
