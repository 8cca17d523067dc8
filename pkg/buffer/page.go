package buffer

import (
	"sync"

	"tuskdb/pkg/config"
)

// Page caches one disk page in a buffer-pool frame and stores the frame's
// metadata. A page is free (on the free list, id == InvalidPageID), pinned
// (pinCount >= 1, in the page table), or evictable (pinCount == 0, in the
// page table and the LRU selector). pinCount and dirty are only touched
// under the manager latch; the page's own rwlock serializes access to data.
type Page struct {
	id       int64
	pinCount int64
	dirty    bool
	rwlock   sync.RWMutex
	data     []byte
}

// ID returns the page's id (unique identifier).
func (page *Page) ID() int64 {
	return page.id
}

// IsDirty reports whether the page has been marked dirty (by an UnpinPage
// with the dirty flag set) since it was last written to disk.
func (page *Page) IsDirty() bool {
	return page.dirty
}

// PinCount returns the number of active references to this page.
func (page *Page) PinCount() int64 {
	return page.pinCount
}

// Data returns the byte data held by the page.
func (page *Page) Data() []byte {
	return page.data
}

// Update updates this page with `size` bytes of the given data slice at the
// specified offset. It does not touch the dirty flag: callers report the
// modification through UnpinPage's dirty argument, under the manager latch.
func (page *Page) Update(data []byte, offset int64, size int64) {
	copy(page.data[offset:offset+size], data)
}

// zero clears the page's bytes.
func (page *Page) zero() {
	for i := range page.data {
		page.data[i] = 0
	}
}

// [CONCURRENCY] Grab a writers lock on the page.
func (page *Page) WLock() {
	page.rwlock.Lock()
}

// [CONCURRENCY] Release a writers lock.
func (page *Page) WUnlock() {
	page.rwlock.Unlock()
}

// [CONCURRENCY] Grab a readers lock on the page.
func (page *Page) RLock() {
	page.rwlock.RLock()
}

// [CONCURRENCY] Release a readers lock.
func (page *Page) RUnlock() {
	page.rwlock.RUnlock()
}

// isFree reports whether the page currently holds no disk page.
func (page *Page) isFree() bool {
	return page.id == config.InvalidPageID
}
