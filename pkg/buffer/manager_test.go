package buffer_test

import (
	"path/filepath"
	"testing"

	"tuskdb/pkg/buffer"
	"tuskdb/pkg/config"
	"tuskdb/pkg/disk"
)

// setupManager creates a buffer pool of the given size over a temp file.
func setupManager(t *testing.T, poolSize int) (*buffer.Manager, *disk.FileManager) {
	t.Helper()
	t.Parallel()
	dm, err := disk.NewFileManager(filepath.Join(t.TempDir(), config.DBFileName))
	if err != nil {
		t.Fatal("Failed to create disk manager:", err)
	}
	t.Cleanup(func() { _ = dm.Close() })
	return buffer.NewManager(poolSize, dm), dm
}

// A pool of two frames: both pages stay resident while pinned, and a third
// fetch fails with every frame pinned.
func TestManagerPoolExhaustion(t *testing.T) {
	m, _ := setupManager(t, 2)

	p1, err := m.FetchPage(1)
	if err != nil {
		t.Fatal("Fetch(1) failed:", err)
	}
	again, err := m.FetchPage(1)
	if err != nil {
		t.Fatal("Second Fetch(1) failed:", err)
	}
	if again != p1 {
		t.Error("Second fetch of a resident page returned a different frame")
	}
	if p1.PinCount() != 2 {
		t.Errorf("Pin count is %d, want 2", p1.PinCount())
	}
	if _, err = m.FetchPage(2); err != nil {
		t.Fatal("Fetch(2) failed:", err)
	}
	if _, err = m.FetchPage(3); err != buffer.ErrNoVictim {
		t.Errorf("Fetch with all frames pinned returned %v, want ErrNoVictim", err)
	}
	// Unpinning frees a frame for the next fetch.
	if err = m.UnpinPage(1, false); err != nil {
		t.Fatal(err)
	}
	if err = m.UnpinPage(1, false); err != nil {
		t.Fatal(err)
	}
	if _, err = m.FetchPage(3); err != nil {
		t.Error("Fetch after unpin failed:", err)
	}
	m.UnpinPage(2, false)
	m.UnpinPage(3, false)
	if !m.AllUnpinned() {
		t.Error("Frames remain pinned after all unpins")
	}
}

// Flush writes a dirty page and clears the flag; a second flush succeeds
// without touching the clean page.
func TestManagerFlush(t *testing.T) {
	m, _ := setupManager(t, 4)

	page, err := m.FetchPage(1)
	if err != nil {
		t.Fatal("Fetch failed:", err)
	}
	page.Update([]byte("durable"), 0, 7)
	if err = m.UnpinPage(1, true); err != nil {
		t.Fatal(err)
	}
	if err = m.FlushPage(1); err != nil {
		t.Fatal("FlushPage failed:", err)
	}
	if page.IsDirty() {
		t.Error("Page is still dirty after flush")
	}
	if err = m.FlushPage(1); err != nil {
		t.Error("FlushPage on a clean page failed:", err)
	}
	if err = m.FlushPage(config.InvalidPageID); err != buffer.ErrInvalidPage {
		t.Errorf("FlushPage(invalid) returned %v, want ErrInvalidPage", err)
	}
	if err = m.FlushPage(99); err != buffer.ErrPageNotFound {
		t.Errorf("FlushPage of a non-resident page returned %v, want ErrPageNotFound", err)
	}
}

// Unpin ORs the dirty flag: a clean unpin after a dirty one must not clear
// dirtiness.
func TestManagerUnpinKeepsDirty(t *testing.T) {
	m, _ := setupManager(t, 4)

	page, err := m.FetchPage(1)
	if err != nil {
		t.Fatal("Fetch failed:", err)
	}
	if _, err = m.FetchPage(1); err != nil {
		t.Fatal(err)
	}
	if err = m.UnpinPage(1, true); err != nil {
		t.Fatal(err)
	}
	if err = m.UnpinPage(1, false); err != nil {
		t.Fatal(err)
	}
	if !page.IsDirty() {
		t.Error("Dirty flag was cleared by a clean unpin")
	}
	if err = m.UnpinPage(42, false); err != buffer.ErrPageNotFound {
		t.Errorf("Unpin of an unknown page returned %v, want ErrPageNotFound", err)
	}
}

// Evicting a dirty page writes it back, so its contents survive eviction.
func TestManagerEvictionWriteBack(t *testing.T) {
	m, _ := setupManager(t, 2)

	page, err := m.FetchPage(1)
	if err != nil {
		t.Fatal(err)
	}
	page.Update([]byte("evict-me"), 0, 8)
	m.UnpinPage(1, true)

	// Fill the pool so page 1 is evicted from the LRU.
	for pid := int64(2); pid <= 3; pid++ {
		if _, err = m.FetchPage(pid); err != nil {
			t.Fatal(err)
		}
		if err = m.UnpinPage(pid, false); err != nil {
			t.Fatal(err)
		}
	}
	reloaded, err := m.FetchPage(1)
	if err != nil {
		t.Fatal("Refetch after eviction failed:", err)
	}
	if string(reloaded.Data()[:8]) != "evict-me" {
		t.Error("Dirty page contents were lost across eviction")
	}
	m.UnpinPage(1, false)
}

// The free list is preferred over LRU eviction: fetching new pages while
// unpinned pages exist must not evict until the free list is empty.
func TestManagerFreeListPreferred(t *testing.T) {
	m, _ := setupManager(t, 4)

	p1, err := m.FetchPage(1)
	if err != nil {
		t.Fatal(err)
	}
	p1.Update([]byte("keep"), 0, 4)
	m.UnpinPage(1, true)

	// Three more fetches consume the remaining free frames; page 1 must
	// still be resident (same frame, contents intact, no disk round trip).
	for pid := int64(2); pid <= 4; pid++ {
		if _, err = m.FetchPage(pid); err != nil {
			t.Fatal(err)
		}
	}
	again, err := m.FetchPage(1)
	if err != nil {
		t.Fatal(err)
	}
	if again != p1 {
		t.Error("Page 1 was evicted while free frames remained")
	}
	m.UnpinPage(1, false)
	for pid := int64(2); pid <= 4; pid++ {
		m.UnpinPage(pid, false)
	}
}

func TestManagerNewAndDeletePage(t *testing.T) {
	m, dm := setupManager(t, 4)

	// New pages get fresh monotonic ids and come zeroed.
	first, err := m.NewPage()
	if err != nil {
		t.Fatal("NewPage failed:", err)
	}
	second, err := m.NewPage()
	if err != nil {
		t.Fatal("NewPage failed:", err)
	}
	if second.ID() <= first.ID() {
		t.Errorf("Page ids are not monotonic: %d then %d", first.ID(), second.ID())
	}
	for _, b := range first.Data() {
		if b != 0 {
			t.Fatal("NewPage returned a non-zeroed frame")
		}
	}

	// Deleting a pinned page must fail and keep the id allocated.
	if err = m.DeletePage(first.ID()); err != buffer.ErrPagePinned {
		t.Errorf("DeletePage of a pinned page returned %v, want ErrPagePinned", err)
	}
	if !dm.IsAllocated(first.ID()) {
		t.Error("Failed delete still deallocated the page id")
	}
	if err = m.UnpinPage(first.ID(), false); err != nil {
		t.Fatal(err)
	}
	if err = m.DeletePage(first.ID()); err != nil {
		t.Fatal("DeletePage of an unpinned page failed:", err)
	}
	if dm.IsAllocated(first.ID()) {
		t.Error("DeletePage did not deallocate the page id")
	}
	// Deleting a non-resident page still deallocates its id.
	if err = m.DeletePage(1000); err != nil {
		t.Error("DeletePage of a non-resident page failed:", err)
	}
	m.UnpinPage(second.ID(), false)
}
