package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tuskdb/pkg/repl"
)

// DatabaseRepl builds the REPL command set for the given database.
func DatabaseRepl(db *Database) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleCreateIndex(db, payload)
	}, "Create an index. usage: create index <index>")

	r.AddCommand("find", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleFind(db, payload)
	}, "Find an element. usage: find <key> from <index>")

	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleInsert(db, payload)
	}, "Insert an element. usage: insert <key> <value> into <index>")

	r.AddCommand("delete", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleDelete(db, payload)
	}, "Delete an element. usage: delete <key> from <index>")

	r.AddCommand("select", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleSelect(db, payload)
	}, "Select all elements of an index. usage: select from <index>")

	r.AddCommand("range", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleRange(db, payload)
	}, "Select elements with keys in [start, end). usage: range <start> <end> from <index>")

	r.AddCommand("pretty", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandlePretty(db, payload)
	}, "Print out the index structure. usage: pretty <index>")

	r.AddCommand("verify", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleVerify(db, payload)
	}, "Check the index's structural invariants. usage: verify <index>")

	return r
}

// Handle create index.
func HandleCreateIndex(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: create index <index>
	if len(fields) != 3 || fields[1] != "index" {
		return "", errors.New("usage: create index <index>")
	}
	if _, err := db.CreateIndex(fields[2]); err != nil {
		return "", err
	}
	return fmt.Sprintf("index %s created.\n", fields[2]), nil
}

// Handle find.
func HandleFind(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: find <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return "", errors.New("usage: find <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", errors.New("find error: key must be an integer")
	}
	tree, err := db.GetIndex(fields[3])
	if err != nil {
		return "", err
	}
	value, found, err := tree.GetValue(key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.Errorf("no entry with key %d was found", key)
	}
	return fmt.Sprintf("(%d, %d)\n", key, value), nil
}

// Handle insert.
func HandleInsert(db *Database, payload string) error {
	fields := strings.Fields(payload)
	// Usage: insert <key> <value> into <index>
	if len(fields) != 5 || fields[3] != "into" {
		return errors.New("usage: insert <key> <value> into <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return errors.New("insert error: key must be an integer")
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return errors.New("insert error: value must be an integer")
	}
	tree, err := db.GetIndex(fields[4])
	if err != nil {
		return err
	}
	return tree.Insert(key, value, nil)
}

// Handle delete.
func HandleDelete(db *Database, payload string) error {
	fields := strings.Fields(payload)
	// Usage: delete <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return errors.New("usage: delete <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return errors.New("delete error: key must be an integer")
	}
	tree, err := db.GetIndex(fields[3])
	if err != nil {
		return err
	}
	return tree.Remove(key, nil)
}

// Handle select.
func HandleSelect(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: select from <index>
	if len(fields) != 3 || fields[1] != "from" {
		return "", errors.New("usage: select from <index>")
	}
	tree, err := db.GetIndex(fields[2])
	if err != nil {
		return "", err
	}
	results, err := tree.Select()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, e := range results {
		e.Print(&sb)
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

// Handle range.
func HandleRange(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: range <start> <end> from <index>
	if len(fields) != 5 || fields[3] != "from" {
		return "", errors.New("usage: range <start> <end> from <index>")
	}
	startKey, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", errors.New("range error: start must be an integer")
	}
	endKey, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", errors.New("range error: end must be an integer")
	}
	tree, err := db.GetIndex(fields[4])
	if err != nil {
		return "", err
	}
	results, err := tree.ScanRange(startKey, endKey)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, e := range results {
		e.Print(&sb)
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

// Handle pretty.
func HandlePretty(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: pretty <index>
	if len(fields) != 2 {
		return "", errors.New("usage: pretty <index>")
	}
	tree, err := db.GetIndex(fields[1])
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	tree.Print(&sb)
	return sb.String(), nil
}

// Handle verify.
func HandleVerify(db *Database, payload string) (string, error) {
	fields := strings.Fields(payload)
	// Usage: verify <index>
	if len(fields) != 2 {
		return "", errors.New("usage: verify <index>")
	}
	tree, err := db.GetIndex(fields[1])
	if err != nil {
		return "", err
	}
	if err := tree.Verify(); err != nil {
		return "", err
	}
	return "ok\n", nil
}
