package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// hashInt64 runs the given hasher over the varint encoding of a key.
func hashInt64(hasher func(b []byte) uint64, key int64) uint64 {
	buf := make([]byte, binary.MaxVarintLen64)
	binary.PutVarint(buf, key)
	return hasher(buf)
}

// XxHasher returns the xxHash hash of the given key.
func XxHasher(key int64) uint64 {
	return hashInt64(xxhash.Sum64, key)
}

// MurmurHasher returns the MurmurHash3 hash of the given key.
func MurmurHasher(key int64) uint64 {
	return hashInt64(murmur3.Sum64, key)
}

// StringHasher returns the xxHash hash of the given string key.
func StringHasher(key string) uint64 {
	return xxhash.Sum64([]byte(key))
}
