// Global database config.
package config

import "github.com/ncw/directio"

// Name of the database.
const DBName = "tuskdb"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// PageSize is the size of an individual page (ie the maximum number of bytes
// that a page can hold) - defaults to 4kb.
const PageSize int64 = directio.BlockSize

// InvalidPageID marks a page id that does not refer to any on-disk page.
const InvalidPageID int64 = -1

// HeaderPageID is the page id of the persistent header page that maps index
// names to their root page ids.
const HeaderPageID int64 = 0

// DefaultPoolSize is the number of frames the buffer pool keeps in memory at
// once unless configured otherwise.
const DefaultPoolSize = 64

// Name of the database file inside a data directory.
const DBFileName = "tusk.db"

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
