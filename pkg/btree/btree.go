// Package btree implements a concurrent B+Tree index stored across
// buffer-pool pages. Data entries live only in leaf nodes, which are chained
// in key order. Writers descend with latch crabbing: a chain of exclusive
// page latches that is released as soon as a child is structurally safe for
// the operation. Readers hand over hand a single shared latch.
package btree

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"tuskdb/pkg/buffer"
	"tuskdb/pkg/concurrency"
	"tuskdb/pkg/config"
)

// Error for inserting a key that is already present.
var ErrDuplicateKey = errors.New("cannot insert duplicate key")

// Error for a header page that cannot accept another index.
var ErrHeaderFull = errors.New("header page is full")

// BTree is an ordered map with unique int64 keys persisted across
// buffer-pool pages. All operations are safe under concurrent callers
// sharing one tree.
//
// rootID is guarded by rootLatch (the root-id latch), which protects the
// binding "which page is the root", not the root page itself. Writers hold
// it exclusively until their descent proves the root cannot change; the
// per-operation hold counter in the transaction context makes releasing it
// idempotent.
type BTree struct {
	name            string
	bpm             *buffer.Manager
	cmp             Comparator
	leafMaxSize     int64
	internalMaxSize int64

	rootLatch sync.RWMutex
	rootID    int64
}

// NewBTree opens (or registers) the index with the given name, using the
// default page-derived node capacities.
func NewBTree(name string, bpm *buffer.Manager, cmp Comparator) (*BTree, error) {
	return NewBTreeWithSizes(name, bpm, cmp, DEFAULT_LEAF_MAX_SIZE, DEFAULT_INTERNAL_MAX_SIZE)
}

// NewBTreeWithSizes opens (or registers) the index with explicit leaf and
// internal node capacities. Small capacities are mainly useful for forcing
// splits and merges in tests; nodes remember the capacity they were created
// with, so reopening with different sizes only affects new nodes.
func NewBTreeWithSizes(name string, bpm *buffer.Manager, cmp Comparator, leafMaxSize, internalMaxSize int64) (*BTree, error) {
	if cmp == nil {
		cmp = CompareInt64
	}
	if leafMaxSize < 2 || leafMaxSize >= LEAF_NODE_CAPACITY {
		leafMaxSize = DEFAULT_LEAF_MAX_SIZE
	}
	if internalMaxSize < 3 || internalMaxSize >= INTERNAL_NODE_CAPACITY {
		internalMaxSize = DEFAULT_INTERNAL_MAX_SIZE
	}
	tree := &BTree{
		name:            name,
		bpm:             bpm,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
	}
	// Load the root binding from the header page, registering the index on
	// first open.
	headerPg, err := bpm.FetchPage(config.HeaderPageID)
	if err != nil {
		return nil, errors.Wrap(err, "btree: fetching header page")
	}
	headerPg.WLock()
	header := asHeader(headerPg)
	rootID, found := header.getRecord(name)
	if !found {
		if !header.insertRecord(name, config.InvalidPageID) {
			headerPg.WUnlock()
			bpm.UnpinPage(config.HeaderPageID, false)
			return nil, ErrHeaderFull
		}
		rootID = config.InvalidPageID
	}
	headerPg.WUnlock()
	if err := bpm.UnpinPage(config.HeaderPageID, !found); err != nil {
		return nil, err
	}
	tree.rootID = rootID
	return tree, nil
}

// GetName returns the index name this tree is registered under.
func (tree *BTree) GetName() string {
	return tree.name
}

// IsEmpty reports whether the tree holds no entries.
func (tree *BTree) IsEmpty() bool {
	tree.rootLatch.RLock()
	defer tree.rootLatch.RUnlock()
	return tree.rootID == config.InvalidPageID
}

// updateRoot persists the current root binding into the header page. Called
// with the root-id latch held exclusively.
func (tree *BTree) updateRoot() {
	headerPg, err := tree.bpm.FetchPage(config.HeaderPageID)
	if err != nil {
		panic(fmt.Sprintf("btree: header page unavailable: %v", err))
	}
	headerPg.WLock()
	if !asHeader(headerPg).updateRecord(tree.name, tree.rootID) {
		headerPg.WUnlock()
		panic(fmt.Sprintf("btree: index %q missing from header page", tree.name))
	}
	headerPg.WUnlock()
	tree.bpm.UnpinPage(config.HeaderPageID, true)
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////// Latch crabbing helpers ///////////////////////////
/////////////////////////////////////////////////////////////////////////////

// lockRoot takes the root-id latch and records the hold in the context.
func (tree *BTree) lockRoot(exclusive bool, txn *concurrency.Transaction) {
	if exclusive {
		tree.rootLatch.Lock()
	} else {
		tree.rootLatch.RLock()
	}
	txn.AddRootHold()
}

// tryUnlockRoot releases the root-id latch if this context still holds it.
// Safe to call more than once per acquisition.
func (tree *BTree) tryUnlockRoot(exclusive bool, txn *concurrency.Transaction) {
	if !txn.DropRootHold() {
		return
	}
	if exclusive {
		tree.rootLatch.Unlock()
	} else {
		tree.rootLatch.RUnlock()
	}
}

// freePages releases everything the operation holds: the root-id latch if
// still held, then each page in the page set (unlatch, unpin, and destroy
// the ones marked for deletion).
func (tree *BTree) freePages(exclusive bool, txn *concurrency.Transaction) {
	tree.tryUnlockRoot(exclusive, txn)
	for _, page := range txn.Pages() {
		pageID := page.ID()
		if exclusive {
			page.WUnlock()
		} else {
			page.RUnlock()
		}
		tree.bpm.UnpinPage(pageID, exclusive)
		if txn.IsDeleted(pageID) {
			if err := tree.bpm.DeletePage(pageID); err != nil {
				panic(fmt.Sprintf("btree: deleting page %d: %v", pageID, err))
			}
			txn.UnmarkDeleted(pageID)
		}
	}
	if txn.DeletedCount() != 0 {
		panic("btree: deleted pages were never latched")
	}
	txn.ClearPages()
}

// crabFetch pins and latches the next page of a descent. When the fetched
// page is safe for the operation (always, for reads) every previously held
// page and the root-id latch are released before the page joins the page
// set. fromParent is false only for the root fetch.
func (tree *BTree) crabFetch(pageID int64, op opType, fromParent bool, txn *concurrency.Transaction) (*buffer.Page, error) {
	exclusive := op != opRead
	page, err := tree.bpm.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	if exclusive {
		page.WLock()
	} else {
		page.RLock()
	}
	if fromParent && (!exclusive || (treeNode{page}).safeFor(op)) {
		tree.freePages(exclusive, txn)
	}
	txn.AddPage(page)
	return page, nil
}

// findLeaf descends from the root to the leaf that owns the given key (or
// the leftmost leaf), crabbing latches per the operation mode. On return
// the leaf is the last entry of the context's page set. Returns a zero view
// if the tree is empty.
func (tree *BTree) findLeaf(key int64, leftmost bool, op opType, txn *concurrency.Transaction) (leafNode, error) {
	exclusive := op != opRead
	tree.lockRoot(exclusive, txn)
	if tree.rootID == config.InvalidPageID {
		tree.tryUnlockRoot(exclusive, txn)
		return leafNode{}, nil
	}
	page, err := tree.crabFetch(tree.rootID, op, false, txn)
	if err != nil {
		tree.freePages(exclusive, txn)
		return leafNode{}, err
	}
	for !(treeNode{page}).isLeaf() {
		node := asInternal(page)
		var next int64
		if leftmost {
			next = node.getChildAt(0)
		} else {
			next = node.lookup(key, tree.cmp)
		}
		page, err = tree.crabFetch(next, op, true, txn)
		if err != nil {
			tree.freePages(exclusive, txn)
			return leafNode{}, err
		}
	}
	return asLeaf(page), nil
}

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////////// Search //////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// GetValue returns the value stored under the given key. Read-only, so it
// needs no transaction context: the descent hands over hand a single shared
// latch.
func (tree *BTree) GetValue(key int64) (int64, bool, error) {
	page, err := tree.descendToLeaf(key, false)
	if err != nil || page == nil {
		return 0, false, err
	}
	leaf := asLeaf(page)
	value, found := leaf.lookup(key, tree.cmp)
	page.RUnlock()
	tree.bpm.UnpinPage(page.ID(), false)
	return value, found, nil
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// Insertion ////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Insert adds a key-value entry to the tree. Returns ErrDuplicateKey (and
// leaves the tree unchanged) if the key is already present. A nil context is
// accepted; one is created for the operation.
func (tree *BTree) Insert(key int64, value int64, txn *concurrency.Transaction) error {
	if txn == nil {
		txn = concurrency.NewTransaction()
	}
	tree.lockRoot(true, txn)
	if tree.rootID == config.InvalidPageID {
		err := tree.startNewTree(key, value)
		tree.tryUnlockRoot(true, txn)
		return err
	}
	tree.tryUnlockRoot(true, txn)
	return tree.insertIntoLeaf(key, value, txn)
}

// startNewTree allocates a leaf root holding the first entry. Called with
// the root-id latch held exclusively.
func (tree *BTree) startNewTree(key int64, value int64) error {
	rootPage, err := tree.bpm.NewPage()
	if err != nil {
		return errors.Wrap(err, "btree: allocating root")
	}
	initNode(rootPage, LEAF_NODE, config.InvalidPageID, tree.leafMaxSize)
	asLeaf(rootPage).insert(key, value, tree.cmp)
	tree.rootID = rootPage.ID()
	tree.updateRoot()
	return tree.bpm.UnpinPage(rootPage.ID(), true)
}

// insertIntoLeaf descends to the owning leaf and inserts, splitting on
// overflow and propagating the split upward.
func (tree *BTree) insertIntoLeaf(key int64, value int64, txn *concurrency.Transaction) error {
	leaf, err := tree.findLeaf(key, false, opInsert, txn)
	if err != nil {
		return err
	}
	if leaf.page == nil {
		// Emptied by a concurrent remover between the root check and the
		// descent's own root lock; start over.
		return tree.Insert(key, value, txn)
	}
	if _, found := leaf.lookup(key, tree.cmp); found {
		tree.freePages(true, txn)
		return ErrDuplicateKey
	}
	leaf.insert(key, value, tree.cmp)
	if leaf.size() > leaf.maxSize() {
		if err := tree.splitLeaf(leaf, key, txn); err != nil {
			tree.freePages(true, txn)
			return err
		}
	}
	tree.freePages(true, txn)
	return nil
}

// splitLeaf moves the upper half of an overflowing leaf into a fresh sibling
// and inserts the separator into the parent. If the sibling cannot be
// allocated the triggering insert is undone so the tree stays consistent.
func (tree *BTree) splitLeaf(leaf leafNode, insertedKey int64, txn *concurrency.Transaction) error {
	siblingPage, err := tree.bpm.NewPage()
	if err != nil {
		leaf.remove(insertedKey, tree.cmp)
		return errors.Wrap(err, "btree: allocating split sibling")
	}
	// No other thread can see the sibling's page id until the parent is
	// updated, so latching it after allocation cannot block.
	siblingPage.WLock()
	txn.AddPage(siblingPage)
	initNode(siblingPage, LEAF_NODE, leaf.parent(), leaf.maxSize())
	sibling := asLeaf(siblingPage)
	leaf.moveHalfTo(sibling)
	return tree.insertIntoParent(leaf.treeNode, sibling.getKeyAt(0), sibling.treeNode, txn)
}

// insertIntoParent links a freshly split-off node into the tree above its
// split partner, growing a new root or cascading further splits as needed.
func (tree *BTree) insertIntoParent(old treeNode, separator int64, newNode treeNode, txn *concurrency.Transaction) error {
	if old.isRoot() {
		// The descent kept the root-id latch because the root was unsafe, so
		// rebinding the root here is exclusive.
		rootPage, err := tree.bpm.NewPage()
		if err != nil {
			panic(fmt.Sprintf("btree: allocating new root: %v", err))
		}
		initNode(rootPage, INTERNAL_NODE, config.InvalidPageID, tree.internalMaxSize)
		asInternal(rootPage).populateNewRoot(old.pid(), separator, newNode.pid())
		old.setParent(rootPage.ID())
		newNode.setParent(rootPage.ID())
		tree.rootID = rootPage.ID()
		tree.updateRoot()
		return tree.bpm.UnpinPage(rootPage.ID(), true)
	}
	// The parent is already write-latched and pinned by the descent; this
	// fetch only adds a pin for the duration of the update.
	parentPage, err := tree.bpm.FetchPage(old.parent())
	if err != nil {
		panic(fmt.Sprintf("btree: parent page %d unavailable: %v", old.parent(), err))
	}
	parent := asInternal(parentPage)
	newNode.setParent(parent.pid())
	parent.insertNodeAfter(old.pid(), separator, newNode.pid())
	if parent.size() > parent.maxSize() {
		err = tree.splitInternal(parent, txn)
	}
	tree.bpm.UnpinPage(parentPage.ID(), true)
	return err
}

// splitInternal moves the upper half of an overflowing internal node into a
// fresh sibling and recurses upward.
func (tree *BTree) splitInternal(node internalNode, txn *concurrency.Transaction) error {
	siblingPage, err := tree.bpm.NewPage()
	if err != nil {
		panic(fmt.Sprintf("btree: allocating split sibling: %v", err))
	}
	siblingPage.WLock()
	txn.AddPage(siblingPage)
	initNode(siblingPage, INTERNAL_NODE, node.parent(), node.maxSize())
	sibling := asInternal(siblingPage)
	if err := node.moveHalfTo(sibling, tree.bpm); err != nil {
		panic(fmt.Sprintf("btree: reparenting split children: %v", err))
	}
	return tree.insertIntoParent(node.treeNode, sibling.getKeyAt(0), sibling.treeNode, txn)
}
