package btree

import (
	"bytes"
	"encoding/binary"

	"tuskdb/pkg/buffer"
	"tuskdb/pkg/config"
)

// The header page (page id 0) is a persistent map from index name to root
// page id: a record count followed by fixed-width (name, root) slots.
const (
	HEADER_NUM_RECORDS_OFFSET int64 = 0
	HEADER_NUM_RECORDS_SIZE   int64 = binary.MaxVarintLen64
	HEADER_RECORDS_OFFSET     int64 = HEADER_NUM_RECORDS_OFFSET + HEADER_NUM_RECORDS_SIZE

	HEADER_NAME_SIZE   int64 = 32
	HEADER_RECORD_SIZE int64 = HEADER_NAME_SIZE + binary.MaxVarintLen64

	MAX_HEADER_RECORDS int64 = (config.PageSize - HEADER_RECORDS_OFFSET) / HEADER_RECORD_SIZE
)

// Exists reports whether an index with the given name is registered in the
// header page.
func Exists(bpm *buffer.Manager, name string) (bool, error) {
	headerPg, err := bpm.FetchPage(config.HeaderPageID)
	if err != nil {
		return false, err
	}
	headerPg.RLock()
	_, found := asHeader(headerPg).getRecord(name)
	headerPg.RUnlock()
	if err = bpm.UnpinPage(config.HeaderPageID, false); err != nil {
		return false, err
	}
	return found, nil
}

// headerPage is the view over the header page.
type headerPage struct {
	page *buffer.Page
}

func asHeader(page *buffer.Page) headerPage {
	return headerPage{page}
}

func (h headerPage) numRecords() int64 {
	return readField(h.page, HEADER_NUM_RECORDS_OFFSET)
}

func (h headerPage) recordPos(index int64) int64 {
	return HEADER_RECORDS_OFFSET + index*HEADER_RECORD_SIZE
}

// nameAt returns the index name stored in the given slot.
func (h headerPage) nameAt(index int64) string {
	pos := h.recordPos(index)
	raw := h.page.Data()[pos : pos+HEADER_NAME_SIZE]
	if cut := bytes.IndexByte(raw, 0); cut >= 0 {
		raw = raw[:cut]
	}
	return string(raw)
}

func (h headerPage) rootAt(index int64) int64 {
	return readField(h.page, h.recordPos(index)+HEADER_NAME_SIZE)
}

// find returns the slot index holding the given name, or -1.
func (h headerPage) find(name string) int64 {
	for i := int64(0); i < h.numRecords(); i++ {
		if h.nameAt(i) == name {
			return i
		}
	}
	return -1
}

// getRecord returns the root page id registered under the given name.
func (h headerPage) getRecord(name string) (int64, bool) {
	idx := h.find(name)
	if idx < 0 {
		return config.InvalidPageID, false
	}
	return h.rootAt(idx), true
}

// insertRecord registers a new (name, root) record, reporting false if the
// name is already present, too long, or the page is full.
func (h headerPage) insertRecord(name string, rootID int64) bool {
	if int64(len(name)) > HEADER_NAME_SIZE || h.find(name) >= 0 {
		return false
	}
	count := h.numRecords()
	if count >= MAX_HEADER_RECORDS {
		return false
	}
	pos := h.recordPos(count)
	nameData := make([]byte, HEADER_NAME_SIZE)
	copy(nameData, name)
	h.page.Update(nameData, pos, HEADER_NAME_SIZE)
	writeField(h.page, pos+HEADER_NAME_SIZE, rootID)
	writeField(h.page, HEADER_NUM_RECORDS_OFFSET, count+1)
	return true
}

// updateRecord rewrites the root page id stored under an existing name.
func (h headerPage) updateRecord(name string, rootID int64) bool {
	idx := h.find(name)
	if idx < 0 {
		return false
	}
	writeField(h.page, h.recordPos(idx)+HEADER_NAME_SIZE, rootID)
	return true
}
