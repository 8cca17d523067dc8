package btree

import (
	"encoding/binary"

	"tuskdb/pkg/buffer"
	"tuskdb/pkg/config"
)

// NodeType identifies if a node is a leaf node or an internal node.
type NodeType byte

const (
	INTERNAL_NODE NodeType = 0
	LEAF_NODE     NodeType = 1
)

// Comparator orders keys: negative if a < b, zero if equal, positive if
// a > b. One comparator is supplied per tree at construction.
type Comparator func(a, b int64) int

// CompareInt64 is the natural integer ordering.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// opType distinguishes the three descent modes for latch crabbing.
type opType int

const (
	opRead opType = iota
	opInsert
	opDelete
)

// treeNode is a typed view over a page holding either kind of B+Tree node.
// Views hold no state of their own beyond the page reference: every accessor
// reads or writes the page bytes directly, so a view never goes stale while
// the page latch is held. Views must never outlive their page's pin.
type treeNode struct {
	page *buffer.Page
}

// readField decodes the varint header field at the given offset.
func readField(page *buffer.Page, offset int64) int64 {
	v, _ := binary.Varint(page.Data()[offset : offset+binary.MaxVarintLen64])
	return v
}

// writeField encodes a varint header field at the given offset.
func writeField(page *buffer.Page, offset int64, value int64) {
	data := make([]byte, binary.MaxVarintLen64)
	binary.PutVarint(data, value)
	page.Update(data, offset, binary.MaxVarintLen64)
}

func (n treeNode) pid() int64 {
	return n.page.ID()
}

func (n treeNode) isLeaf() bool {
	return NodeType(n.page.Data()[NODETYPE_OFFSET]) == LEAF_NODE
}

// isRoot reports whether this node has no parent.
func (n treeNode) isRoot() bool {
	return n.parent() == config.InvalidPageID
}

// size returns the number of pairs stored in the node. For internal nodes
// this counts children, including the keyless child at index 0.
func (n treeNode) size() int64 {
	return readField(n.page, NUM_KEYS_OFFSET)
}

func (n treeNode) setSize(size int64) {
	writeField(n.page, NUM_KEYS_OFFSET, size)
}

func (n treeNode) maxSize() int64 {
	return readField(n.page, MAX_SIZE_OFFSET)
}

func (n treeNode) parent() int64 {
	return readField(n.page, PARENT_PN_OFFSET)
}

func (n treeNode) setParent(pageID int64) {
	writeField(n.page, PARENT_PN_OFFSET, pageID)
}

// minSize returns the underflow bound. The root is special-cased: a leaf
// root may hold a single entry and an internal root needs two children.
func (n treeNode) minSize() int64 {
	if n.isRoot() {
		if n.isLeaf() {
			return 1
		}
		return 2
	}
	return n.maxSize() / 2
}

// safeFor reports whether this node cannot overflow (insert) or underflow
// (delete) as a result of the current operation, letting a writer release
// every ancestor latch on entry.
func (n treeNode) safeFor(op opType) bool {
	if op == opRead {
		return true
	}
	size := n.size()
	if op == opInsert {
		return size < n.maxSize()
	}
	// Delete: the node must tolerate losing one pair.
	bound := n.minSize() + 1
	if n.isLeaf() {
		return size >= bound
	}
	return size > bound
}

// initNode stamps a fresh page as an empty node of the given type. The page
// comes zeroed from the buffer pool, so only non-zero fields are written.
func initNode(page *buffer.Page, nodeType NodeType, parent int64, maxSize int64) {
	page.Update([]byte{byte(nodeType)}, NODETYPE_OFFSET, NODETYPE_SIZE)
	writeField(page, NUM_KEYS_OFFSET, 0)
	writeField(page, MAX_SIZE_OFFSET, maxSize)
	writeField(page, PARENT_PN_OFFSET, parent)
	if nodeType == LEAF_NODE {
		writeField(page, NEXT_PN_OFFSET, config.InvalidPageID)
	}
}
