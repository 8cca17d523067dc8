// Package database ties the storage engine together: one disk manager and
// one buffer pool per data directory, with B+Tree indexes addressed by name
// through the persistent header page.
package database

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"tuskdb/pkg/btree"
	"tuskdb/pkg/buffer"
	"tuskdb/pkg/config"
	"tuskdb/pkg/disk"
)

// Database interface.
type Database struct {
	basepath string
	dm       *disk.FileManager
	bpm      *buffer.Manager
	mtx      sync.Mutex
	indexes  map[string]*btree.BTree
}

// Opens a database given a data folder, with the default buffer pool size.
func Open(folder string) (*Database, error) {
	return OpenWithPoolSize(folder, config.DefaultPoolSize)
}

// OpenWithPoolSize opens a database with an explicit buffer pool size.
func OpenWithPoolSize(folder string, poolSize int) (*Database, error) {
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	dm, err := disk.NewFileManager(filepath.Join(folder, config.DBFileName))
	if err != nil {
		return nil, err
	}
	bpm := buffer.NewManager(poolSize, dm)
	// A fresh database file gets its header page allocated as page 0.
	if dm.NumPages() == 0 {
		headerPg, err := bpm.NewPage()
		if err != nil {
			dm.Close()
			return nil, err
		}
		if headerPg.ID() != config.HeaderPageID {
			panic("database: header page was not allocated as page 0")
		}
		if err = bpm.UnpinPage(headerPg.ID(), true); err != nil {
			dm.Close()
			return nil, err
		}
	}
	return &Database{
		basepath: folder,
		dm:       dm,
		bpm:      bpm,
		indexes:  make(map[string]*btree.BTree),
	}, nil
}

// BufferPool returns the database's buffer pool manager.
func (db *Database) BufferPool() *buffer.Manager {
	return db.bpm
}

// DiskManager returns the database's disk manager.
func (db *Database) DiskManager() *disk.FileManager {
	return db.dm
}

// CreateIndex registers a new, empty B+Tree index under the given name.
func (db *Database) CreateIndex(name string) (*btree.BTree, error) {
	alphanumeric, _ := regexp.Compile(`\W`)
	if alphanumeric.MatchString(name) {
		return nil, errors.New("index name must be alphanumeric")
	}
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if _, ok := db.indexes[name]; ok {
		return nil, errors.Errorf("index %q already exists", name)
	}
	if registered, err := btree.Exists(db.bpm, name); err != nil {
		return nil, err
	} else if registered {
		return nil, errors.Errorf("index %q already exists", name)
	}
	tree, err := btree.NewBTree(name, db.bpm, btree.CompareInt64)
	if err != nil {
		return nil, err
	}
	db.indexes[name] = tree
	return tree, nil
}

// GetIndex returns the index registered under the given name.
func (db *Database) GetIndex(name string) (*btree.BTree, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if tree, ok := db.indexes[name]; ok {
		return tree, nil
	}
	registered, err := btree.Exists(db.bpm, name)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, errors.Errorf("index %q not found", name)
	}
	tree, err := btree.NewBTree(name, db.bpm, btree.CompareInt64)
	if err != nil {
		return nil, err
	}
	db.indexes[name] = tree
	return tree, nil
}

// Close flushes every dirty page and closes the backing file. Fails if any
// page is still pinned.
func (db *Database) Close() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if !db.bpm.AllUnpinned() {
		return errors.New("pages are still pinned on close")
	}
	if err := db.bpm.FlushAll(); err != nil {
		return err
	}
	return db.dm.Close()
}
