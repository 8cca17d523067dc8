package database_test

import (
	"strings"
	"testing"

	"tuskdb/pkg/database"
)

func setupDatabase(t *testing.T) *database.Database {
	t.Helper()
	t.Parallel()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatal("Failed to open database:", err)
	}
	return db
}

func TestDatabaseCreateAndGet(t *testing.T) {
	db := setupDatabase(t)
	defer db.Close()

	tree, err := db.CreateIndex("people")
	if err != nil {
		t.Fatal("CreateIndex failed:", err)
	}
	if _, err = db.CreateIndex("people"); err == nil {
		t.Error("Creating a duplicate index did not error")
	}
	if _, err = db.CreateIndex("not ok!"); err == nil {
		t.Error("Creating an index with a non-alphanumeric name did not error")
	}
	got, err := db.GetIndex("people")
	if err != nil {
		t.Fatal("GetIndex failed:", err)
	}
	if got != tree {
		t.Error("GetIndex returned a different tree")
	}
	if _, err = db.GetIndex("nosuch"); err == nil {
		t.Error("GetIndex of an unknown index did not error")
	}
}

// Indexes and their contents survive a close and reopen of the data folder.
func TestDatabasePersistence(t *testing.T) {
	t.Parallel()
	folder := t.TempDir()
	db, err := database.Open(folder)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := db.CreateIndex("t")
	if err != nil {
		t.Fatal(err)
	}
	for i := int64(0); i < 500; i++ {
		if err = tree.Insert(i, i*7, nil); err != nil {
			t.Fatalf("Insert(%d) failed: %s", i, err)
		}
	}
	if err = db.Close(); err != nil {
		t.Fatal("Close failed:", err)
	}

	db, err = database.Open(folder)
	if err != nil {
		t.Fatal("Reopen failed:", err)
	}
	defer db.Close()
	reopened, err := db.GetIndex("t")
	if err != nil {
		t.Fatal("GetIndex after reopen failed:", err)
	}
	for i := int64(0); i < 500; i++ {
		value, found, err := reopened.GetValue(i)
		if err != nil || !found || value != i*7 {
			t.Fatalf("After reopen, GetValue(%d) = (%d, %v, %v)", i, value, found, err)
		}
	}
	if err = reopened.Verify(); err != nil {
		t.Error("Invariant violation after reopen:", err)
	}
}

// The REPL command handlers drive the full stack.
func TestDatabaseReplHandlers(t *testing.T) {
	db := setupDatabase(t)
	defer db.Close()

	if _, err := database.HandleCreateIndex(db, "create index t"); err != nil {
		t.Fatal("create failed:", err)
	}
	if err := database.HandleInsert(db, "insert 5 50 into t"); err != nil {
		t.Fatal("insert failed:", err)
	}
	out, err := database.HandleFind(db, "find 5 from t")
	if err != nil {
		t.Fatal("find failed:", err)
	}
	if !strings.Contains(out, "(5, 50)") {
		t.Errorf("find output %q does not contain the entry", out)
	}
	if _, err = database.HandleFind(db, "find 6 from t"); err == nil {
		t.Error("find of an absent key did not error")
	}
	if err = database.HandleDelete(db, "delete 5 from t"); err != nil {
		t.Fatal("delete failed:", err)
	}
	if _, err = database.HandleFind(db, "find 5 from t"); err == nil {
		t.Error("find of a deleted key did not error")
	}
	if _, err = database.HandleVerify(db, "verify t"); err != nil {
		t.Error("verify failed:", err)
	}
}
