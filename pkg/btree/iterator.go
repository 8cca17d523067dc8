package btree

import (
	"tuskdb/pkg/buffer"
	"tuskdb/pkg/config"
	"tuskdb/pkg/cursor"
	"tuskdb/pkg/entry"

	"github.com/pkg/errors"
)

// Iterator walks the leaf chain in ascending key order. It holds exactly one
// read-latched, pinned leaf and an index into it; advancing off the end of a
// leaf releases it before fetching the next one. A terminal iterator holds
// nothing.
type Iterator struct {
	tree *BTree
	page *buffer.Page // nil once terminal
	leaf leafNode
	idx  int64
}

var _ cursor.Cursor = (*Iterator)(nil)

// descendToLeaf read-crabs from the root down to a leaf: the leftmost leaf,
// or the leaf owning the given key.
func (tree *BTree) descendToLeaf(key int64, leftmost bool) (*buffer.Page, error) {
	tree.rootLatch.RLock()
	if tree.rootID == config.InvalidPageID {
		tree.rootLatch.RUnlock()
		return nil, nil
	}
	page, err := tree.bpm.FetchPage(tree.rootID)
	if err != nil {
		tree.rootLatch.RUnlock()
		return nil, err
	}
	page.RLock()
	tree.rootLatch.RUnlock()
	for !(treeNode{page}).isLeaf() {
		node := asInternal(page)
		var next int64
		if leftmost {
			next = node.getChildAt(0)
		} else {
			next = node.lookup(key, tree.cmp)
		}
		childPage, err := tree.bpm.FetchPage(next)
		if err != nil {
			page.RUnlock()
			tree.bpm.UnpinPage(page.ID(), false)
			return nil, err
		}
		childPage.RLock()
		page.RUnlock()
		tree.bpm.UnpinPage(page.ID(), false)
		page = childPage
	}
	return page, nil
}

// Begin returns an iterator positioned at the first entry of the tree. On an
// empty tree the iterator starts terminal.
func (tree *BTree) Begin() (*Iterator, error) {
	page, err := tree.descendToLeaf(0, true)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &Iterator{tree: tree}, nil
	}
	return &Iterator{tree: tree, page: page, leaf: asLeaf(page)}, nil
}

// BeginAt returns an iterator positioned at the first entry whose key is >=
// the given key.
func (tree *BTree) BeginAt(key int64) (*Iterator, error) {
	page, err := tree.descendToLeaf(key, false)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &Iterator{tree: tree}, nil
	}
	it := &Iterator{tree: tree, page: page, leaf: asLeaf(page)}
	it.idx = it.leaf.search(key, tree.cmp)
	if it.idx >= it.leaf.size() {
		it.advanceLeaf()
	}
	return it, nil
}

// IsEnd reports whether the iterator has run off the end of the leaf chain.
func (it *Iterator) IsEnd() bool {
	return it.page == nil
}

// GetEntry returns the entry the iterator currently points at.
func (it *Iterator) GetEntry() (entry.Entry, error) {
	if it.page == nil {
		return entry.Entry{}, errors.New("iterator is exhausted")
	}
	return it.leaf.getEntry(it.idx), nil
}

// Next moves the iterator ahead by one entry. Returns true once the iterator
// has moved past the last entry of the tree; the iterator's resources are
// released at that point.
func (it *Iterator) Next() (atEnd bool) {
	if it.page == nil {
		return true
	}
	it.idx++
	if it.idx < it.leaf.size() {
		return false
	}
	return it.advanceLeaf()
}

// advanceLeaf releases the current leaf and latches the next one in the
// chain, skipping any empty leaves. The current leaf's latch is dropped
// before the next leaf is fetched, so the iterator never holds two latches.
func (it *Iterator) advanceLeaf() (atEnd bool) {
	for {
		nextPN := it.leaf.next()
		it.release()
		if nextPN == config.InvalidPageID {
			return true
		}
		nextPage, err := it.tree.bpm.FetchPage(nextPN)
		if err != nil {
			return true
		}
		nextPage.RLock()
		it.page = nextPage
		it.leaf = asLeaf(nextPage)
		it.idx = 0
		if it.leaf.size() > 0 {
			return false
		}
	}
}

// release unlatches and unpins the held leaf, exactly once each.
func (it *Iterator) release() {
	if it.page == nil {
		return
	}
	it.page.RUnlock()
	it.tree.bpm.UnpinPage(it.page.ID(), false)
	it.page = nil
}

// Close releases the iterator's resources. Safe to call on a terminal
// iterator.
func (it *Iterator) Close() {
	it.release()
}
