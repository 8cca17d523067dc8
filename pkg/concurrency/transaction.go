// Package concurrency provides the per-operation context that B+Tree writers
// thread through their latch-crabbing descent: the ordered set of pages they
// currently hold latched, the page ids they have marked for deletion, and a
// hold counter for the tree's root-id latch.
package concurrency

import (
	"github.com/google/uuid"

	"tuskdb/pkg/buffer"
)

// Transaction tracks the pages one index operation has latched and the pages
// it intends to destroy. It is owned by a single caller and is not safe for
// concurrent use; safety across callers comes from the latches it records.
type Transaction struct {
	clientID  uuid.UUID
	pages     []*buffer.Page
	deleted   map[int64]struct{}
	rootHolds int
}

// NewTransaction constructs an empty operation context with a fresh client id.
func NewTransaction() *Transaction {
	return &Transaction{
		clientID: uuid.New(),
		deleted:  make(map[int64]struct{}),
	}
}

// ClientID returns the context's unique identifier.
func (t *Transaction) ClientID() uuid.UUID {
	return t.clientID
}

// AddPage appends a latched page to the page set. Pages are recorded in
// descent order, root first.
func (t *Transaction) AddPage(page *buffer.Page) {
	t.pages = append(t.pages, page)
}

// Pages returns the current page set in insertion order.
func (t *Transaction) Pages() []*buffer.Page {
	return t.pages
}

// ClearPages empties the page set.
func (t *Transaction) ClearPages() {
	t.pages = t.pages[:0]
}

// MarkDeleted records a page id to destroy once the operation's latches are
// released.
func (t *Transaction) MarkDeleted(pageID int64) {
	t.deleted[pageID] = struct{}{}
}

// IsDeleted reports whether the page id is marked for deletion.
func (t *Transaction) IsDeleted(pageID int64) bool {
	_, ok := t.deleted[pageID]
	return ok
}

// UnmarkDeleted drops a page id from the deleted set.
func (t *Transaction) UnmarkDeleted(pageID int64) {
	delete(t.deleted, pageID)
}

// DeletedCount returns the number of page ids still marked for deletion.
func (t *Transaction) DeletedCount() int {
	return len(t.deleted)
}

// RootHolds returns how many times this context currently holds the root-id
// latch. The counter makes releasing the latch idempotent.
func (t *Transaction) RootHolds() int {
	return t.rootHolds
}

// AddRootHold records an acquisition of the root-id latch.
func (t *Transaction) AddRootHold() {
	t.rootHolds++
}

// DropRootHold records a release of the root-id latch, reporting whether a
// hold was actually outstanding.
func (t *Transaction) DropRootHold() bool {
	if t.rootHolds == 0 {
		return false
	}
	t.rootHolds--
	return true
}
