package disk

import (
	"io"
	"os"
	"strings"
	"sync"

	"tuskdb/pkg/config"

	"github.com/bits-and-blooms/bitset"
	"github.com/ncw/directio"
	"github.com/pkg/errors"
)

// FileManager is a Manager backed by a single database file. Page n lives at
// byte offset n*PageSize. Page ids are handed out monotonically; a bitmap
// tracks which ids are live so deallocation is idempotent.
type FileManager struct {
	mtx       sync.Mutex
	file      *os.File
	nextPage  int64
	allocated *bitset.BitSet
}

// NewFileManager opens (or creates) the database file at the specified path.
// Returns an error if the file exists but its size is not page-aligned.
func NewFileManager(filePath string) (*FileManager, error) {
	// Create the necessary prerequisite directories.
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return nil, errors.Wrap(err, "disk: creating data directory")
		}
	}
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "disk: opening %s", filePath)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "disk: stat")
	}
	if info.Size()%config.PageSize != 0 {
		file.Close()
		return nil, errors.Errorf("disk: %s is not page-aligned", filePath)
	}
	numPages := info.Size() / config.PageSize
	allocated := bitset.New(uint(numPages))
	for i := int64(0); i < numPages; i++ {
		allocated.Set(uint(i))
	}
	return &FileManager{
		file:      file,
		nextPage:  numPages,
		allocated: allocated,
	}, nil
}

// FileName returns the path of the backing file.
func (dm *FileManager) FileName() string {
	return dm.file.Name()
}

// NumPages returns the number of page ids handed out so far.
func (dm *FileManager) NumPages() int64 {
	dm.mtx.Lock()
	defer dm.mtx.Unlock()
	return dm.nextPage
}

// ReadPage fills data with the current on-disk contents of the page. Reading
// past the end of the file yields zeroed bytes, so freshly allocated pages
// read back empty.
func (dm *FileManager) ReadPage(pageID int64, data []byte) error {
	if pageID < 0 || int64(len(data)) != config.PageSize {
		return errors.Errorf("disk: bad read of page %d", pageID)
	}
	n, err := dm.file.ReadAt(data, pageID*config.PageSize)
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "disk: reading page %d", pageID)
	}
	for i := n; i < len(data); i++ {
		data[i] = 0
	}
	return nil
}

// WritePage durably writes one page of data at the page's offset.
func (dm *FileManager) WritePage(pageID int64, data []byte) error {
	if pageID < 0 || int64(len(data)) != config.PageSize {
		return errors.Errorf("disk: bad write of page %d", pageID)
	}
	if _, err := dm.file.WriteAt(data, pageID*config.PageSize); err != nil {
		return errors.Wrapf(err, "disk: writing page %d", pageID)
	}
	return nil
}

// AllocatePage returns a fresh page id. Ids are never reused, so they are
// monotonic for the lifetime of the file.
func (dm *FileManager) AllocatePage() int64 {
	dm.mtx.Lock()
	defer dm.mtx.Unlock()
	pageID := dm.nextPage
	dm.nextPage++
	dm.allocated.Set(uint(pageID))
	return pageID
}

// DeallocatePage releases a page id. Deallocating an id that was never
// allocated, or deallocating twice, is a no-op.
func (dm *FileManager) DeallocatePage(pageID int64) {
	if pageID < 0 {
		return
	}
	dm.mtx.Lock()
	defer dm.mtx.Unlock()
	dm.allocated.Clear(uint(pageID))
}

// IsAllocated reports whether the given page id is currently live.
func (dm *FileManager) IsAllocated(pageID int64) bool {
	if pageID < 0 {
		return false
	}
	dm.mtx.Lock()
	defer dm.mtx.Unlock()
	return dm.allocated.Test(uint(pageID))
}

// Close syncs and closes the backing file.
func (dm *FileManager) Close() error {
	if err := dm.file.Sync(); err != nil {
		return errors.Wrap(err, "disk: sync")
	}
	return dm.file.Close()
}
