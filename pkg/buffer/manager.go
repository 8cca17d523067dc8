// Package buffer implements the fixed-size buffer pool: a frame array, a
// page table mapping page ids to frames, an LRU victim selector over
// unpinned frames, and the pin/unpin/fetch/new/delete/flush lifecycle.
package buffer

import (
	"sync"

	"github.com/ncw/directio"
	"github.com/pkg/errors"

	"tuskdb/pkg/config"
	"tuskdb/pkg/disk"
	"tuskdb/pkg/hash"
	"tuskdb/pkg/list"
)

// Error for when all frames are pinned and no victim is available.
var ErrNoVictim = errors.New("no available frames")

// Error for when an operation names a page id the pool does not hold.
var ErrPageNotFound = errors.New("page not in buffer pool")

// Error for when a delete targets a pinned page.
var ErrPagePinned = errors.New("page is pinned")

// Error for an operation on the invalid page id.
var ErrInvalidPage = errors.New("invalid page id")

// Manager owns a fixed pool of frames and caches disk pages in them. Every
// access to a page's bytes must be enclosed by a FetchPage/NewPage and a
// matching UnpinPage. All public operations hold the manager latch for their
// duration; pinCount and dirty flags are only mutated under it.
type Manager struct {
	mtx       sync.Mutex
	frames    []*Page
	freeList  *list.List[*Page]
	pageTable *hash.Table[int64, *Page]
	replacer  *LRUReplacer[*Page]
	disk      disk.Manager
}

// NewManager constructs a buffer pool with poolSize frames over the given
// disk manager. The frame memory is one contiguous aligned block so the disk
// layer can do direct io against it.
func NewManager(poolSize int, dm disk.Manager) *Manager {
	m := &Manager{
		frames:    make([]*Page, poolSize),
		freeList:  list.New[*Page](),
		pageTable: hash.New[int64, *Page](hash.DefaultBucketCapacity, hash.XxHasher),
		replacer:  NewLRUReplacer[*Page](),
		disk:      dm,
	}
	block := directio.AlignedBlock(poolSize * int(config.PageSize))
	for i := 0; i < poolSize; i++ {
		page := &Page{
			id:   config.InvalidPageID,
			data: block[int64(i)*config.PageSize : int64(i+1)*config.PageSize],
		}
		m.frames[i] = page
		m.freeList.PushTail(page)
	}
	return m
}

// PoolSize returns the number of frames in the pool.
func (m *Manager) PoolSize() int {
	return len(m.frames)
}

// getVictim returns a frame to load a page into: the free list first, then
// the oldest unpinned frame from the LRU selector. The LRU invariant
// guarantees a victim's pin count is zero.
func (m *Manager) getVictim() (*Page, error) {
	if freeLink := m.freeList.PeekHead(); freeLink != nil {
		freeLink.PopSelf()
		page := freeLink.GetValue()
		return page, nil
	}
	page, ok := m.replacer.Victim()
	if !ok {
		return nil, ErrNoVictim
	}
	if page.pinCount != 0 {
		panic("buffer: evicting a pinned page")
	}
	return page, nil
}

// evict writes a dirty victim back and drops its page-table entry, leaving
// the frame ready to hold a different page.
func (m *Manager) evict(page *Page) error {
	if page.isFree() {
		return nil
	}
	if page.dirty {
		if err := m.disk.WritePage(page.id, page.data); err != nil {
			return err
		}
	}
	m.pageTable.Remove(page.id)
	return nil
}

// requeue returns a victim whose load failed to wherever it came from: the
// free list if it holds no page, else the LRU selector.
func (m *Manager) requeue(page *Page) {
	if page.isFree() {
		m.freeList.PushTail(page)
	} else {
		m.replacer.Insert(page)
	}
}

// FetchPage pins and returns the page with the given id, reading it from
// disk on a miss. Returns ErrNoVictim if every frame is pinned.
func (m *Manager) FetchPage(pageID int64) (*Page, error) {
	if pageID < 0 {
		return nil, ErrInvalidPage
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if page, found := m.pageTable.Find(pageID); found {
		page.pinCount++
		m.replacer.Erase(page)
		return page, nil
	}
	page, err := m.getVictim()
	if err != nil {
		return nil, err
	}
	if err = m.evict(page); err != nil {
		m.requeue(page)
		return nil, err
	}
	if err = m.disk.ReadPage(pageID, page.data); err != nil {
		// The old page is gone; the frame is free again.
		page.id = config.InvalidPageID
		m.freeList.PushTail(page)
		return nil, err
	}
	page.id = pageID
	page.pinCount = 1
	page.dirty = false
	m.pageTable.Insert(pageID, page)
	return page, nil
}

// UnpinPage releases one reference to the page. The dirty flag is ORed in:
// unpinning never clears dirtiness. When the pin count reaches zero the
// frame becomes an eviction candidate.
func (m *Manager) UnpinPage(pageID int64, dirty bool) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	page, found := m.pageTable.Find(pageID)
	if !found {
		return ErrPageNotFound
	}
	if page.pinCount <= 0 {
		panic("buffer: unpin of unpinned page")
	}
	page.dirty = page.dirty || dirty
	page.pinCount--
	if page.pinCount == 0 {
		m.replacer.Insert(page)
	}
	return nil
}

// NewPage allocates a fresh page id from the disk manager, loads a zeroed
// frame for it and returns the pinned page. Returns ErrNoVictim if every
// frame is pinned.
func (m *Manager) NewPage() (*Page, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	page, err := m.getVictim()
	if err != nil {
		return nil, err
	}
	if err = m.evict(page); err != nil {
		m.requeue(page)
		return nil, err
	}
	page.id = m.disk.AllocatePage()
	page.pinCount = 1
	page.dirty = false
	page.zero()
	m.pageTable.Insert(page.id, page)
	return page, nil
}

// DeletePage removes the page from the pool and deallocates its id. Returns
// ErrPagePinned (without deallocating) if the page is held by any caller.
// Deleting a page the pool does not hold still deallocates the id.
func (m *Manager) DeletePage(pageID int64) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if page, found := m.pageTable.Find(pageID); found {
		if page.pinCount > 0 {
			return ErrPagePinned
		}
		m.replacer.Erase(page)
		m.pageTable.Remove(pageID)
		page.dirty = false
		page.zero()
		page.id = config.InvalidPageID
		m.freeList.PushTail(page)
	}
	m.disk.DeallocatePage(pageID)
	return nil
}

// FlushPage writes the page to disk if it is dirty and clears the dirty
// flag. Flushing a clean resident page succeeds without a write.
func (m *Manager) FlushPage(pageID int64) error {
	if pageID == config.InvalidPageID {
		return ErrInvalidPage
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	page, found := m.pageTable.Find(pageID)
	if !found {
		return ErrPageNotFound
	}
	if page.dirty {
		if err := m.disk.WritePage(page.id, page.data); err != nil {
			return err
		}
		page.dirty = false
	}
	return nil
}

// FlushAll writes every dirty resident page to disk.
func (m *Manager) FlushAll() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, page := range m.frames {
		if page.isFree() || !page.dirty {
			continue
		}
		if err := m.disk.WritePage(page.id, page.data); err != nil {
			return err
		}
		page.dirty = false
	}
	return nil
}

// AllUnpinned reports whether every frame in the pool has a zero pin count.
// Useful as a leak check after an operation completes.
func (m *Manager) AllUnpinned() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, page := range m.frames {
		if page.pinCount != 0 {
			return false
		}
	}
	return true
}
