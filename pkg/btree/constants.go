package btree

import (
	"encoding/binary"

	"tuskdb/pkg/config"
)

// On-page node layout. Every node occupies one buffer-pool page: a header
// followed by a dense array of key-sorted pairs. Numeric header fields are
// fixed-width varints.
const (
	NODETYPE_OFFSET  int64 = 0
	NODETYPE_SIZE    int64 = 1
	NUM_KEYS_OFFSET  int64 = NODETYPE_OFFSET + NODETYPE_SIZE
	NUM_KEYS_SIZE    int64 = binary.MaxVarintLen64
	MAX_SIZE_OFFSET  int64 = NUM_KEYS_OFFSET + NUM_KEYS_SIZE
	MAX_SIZE_SIZE    int64 = binary.MaxVarintLen64
	PARENT_PN_OFFSET int64 = MAX_SIZE_OFFSET + MAX_SIZE_SIZE
	PARENT_PN_SIZE   int64 = binary.MaxVarintLen64
	NODE_HEADER_SIZE int64 = PARENT_PN_OFFSET + PARENT_PN_SIZE
)

// Leaf nodes additionally chain to their right sibling.
const (
	NEXT_PN_OFFSET        int64 = NODE_HEADER_SIZE
	NEXT_PN_SIZE          int64 = binary.MaxVarintLen64
	LEAF_NODE_HEADER_SIZE int64 = NODE_HEADER_SIZE + NEXT_PN_SIZE
)

// Entry constants. Leaf entries are (key, value) pairs; internal pairs are
// (key, child page id) with the same width.
const (
	ENTRYSIZE int64 = binary.MaxVarintLen64 * 2

	INTERNAL_NODE_HEADER_SIZE int64 = NODE_HEADER_SIZE

	// Page capacity in pairs. A node may transiently hold one pair beyond
	// its max size before it splits, so the default max sizes leave a slot
	// of slack.
	LEAF_NODE_CAPACITY     int64 = (config.PageSize - LEAF_NODE_HEADER_SIZE) / ENTRYSIZE
	INTERNAL_NODE_CAPACITY int64 = (config.PageSize - INTERNAL_NODE_HEADER_SIZE) / ENTRYSIZE

	DEFAULT_LEAF_MAX_SIZE     int64 = LEAF_NODE_CAPACITY - 1
	DEFAULT_INTERNAL_MAX_SIZE int64 = INTERNAL_NODE_CAPACITY - 1
)
