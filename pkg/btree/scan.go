package btree

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"tuskdb/pkg/config"
	"tuskdb/pkg/entry"
)

// Select returns every entry in the tree ordered by key.
func (tree *BTree) Select() ([]entry.Entry, error) {
	it, err := tree.Begin()
	if err != nil {
		return nil, err
	}
	defer it.Close()
	results := make([]entry.Entry, 0)
	for !it.IsEnd() {
		e, err := it.GetEntry()
		if err != nil {
			return nil, err
		}
		results = append(results, e)
		if it.Next() {
			break
		}
	}
	return results, nil
}

// ScanRange returns the entries with keys in [startKey, endKey).
func (tree *BTree) ScanRange(startKey, endKey int64) ([]entry.Entry, error) {
	if tree.cmp(startKey, endKey) >= 0 {
		return nil, errors.New("startKey is not smaller than endKey")
	}
	it, err := tree.BeginAt(startKey)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	results := make([]entry.Entry, 0)
	for !it.IsEnd() {
		e, err := it.GetEntry()
		if err != nil {
			return nil, err
		}
		if tree.cmp(e.Key, endKey) >= 0 {
			break
		}
		results = append(results, e)
		if it.Next() {
			break
		}
	}
	return results, nil
}

// Print will pretty-print the whole tree.
func (tree *BTree) Print(w io.Writer) {
	tree.rootLatch.RLock()
	rootID := tree.rootID
	tree.rootLatch.RUnlock()
	if rootID == config.InvalidPageID {
		io.WriteString(w, "empty tree\n")
		return
	}
	tree.printNode(rootID, "", "", w)
}

// printNode pretty-prints one subtree.
func (tree *BTree) printNode(pageID int64, firstPrefix string, prefix string, w io.Writer) {
	page, err := tree.bpm.FetchPage(pageID)
	if err != nil {
		return
	}
	defer tree.bpm.UnpinPage(pageID, false)
	node := treeNode{page}
	if node.isLeaf() {
		leaf := asLeaf(page)
		fmt.Fprintf(w, "%v[%v] Leaf size: %v\n", firstPrefix, pageID, node.size())
		for i := int64(0); i < node.size(); i++ {
			e := leaf.getEntry(i)
			fmt.Fprintf(w, "%v |--> (%v, %v)\n", prefix, e.Key, e.Value)
		}
		return
	}
	internal := asInternal(page)
	fmt.Fprintf(w, "%v[%v] Internal size: %v\n", firstPrefix, pageID, node.size())
	nextFirstPrefix := prefix + " |--> "
	nextPrefix := prefix + " |    "
	for i := int64(0); i < node.size(); i++ {
		if i > 0 {
			fmt.Fprintf(w, "%v[KEY] %v\n", nextPrefix, internal.getKeyAt(i))
		}
		tree.printNode(internal.getChildAt(i), nextFirstPrefix, nextPrefix, w)
	}
}
