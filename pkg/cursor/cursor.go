package cursor

import (
	"tuskdb/pkg/entry"
)

// Interface for a cursor that traverses an index in key order.
type Cursor interface {
	Next() bool                     // Moves the cursor to the next entry, reporting whether the end was passed
	GetEntry() (entry.Entry, error) // Returns the entry at the position of the cursor
	Close()                         // Called to indicate that the cursor is done being used
}
