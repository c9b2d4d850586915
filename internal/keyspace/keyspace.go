// Package keyspace derives physical keys for logical stores sharing one medium.
package keyspace

import (
	"encoding/binary"
	"strings"
)

// Prefix prepends prefix to key. An empty prefix is the identity.
func Prefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + key
}

// Strip removes prefix from a physical key. It reports false when the key
// does not carry the prefix.
func Strip(prefix, physical string) (string, bool) {
	if prefix == "" {
		return physical, true
	}
	return strings.CutPrefix(physical, prefix)
}

// StorePrefix returns the physical prefix shared by every record of a store
// in an ordered byte-keyed medium. The store name is length-prefixed so that
// no store's range can overlap another's, whatever bytes the names contain.
func StorePrefix(store string) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(store))
	buf = binary.AppendUvarint(buf, uint64(len(store)))
	return append(buf, store...)
}

// Composite returns the physical key for (store, key).
func Composite(store, key string) []byte {
	return append(StorePrefix(store), key...)
}

// SplitComposite reverses Composite.
func SplitComposite(physical []byte) (store, key string, ok bool) {
	n, size := binary.Uvarint(physical)
	if size <= 0 || uint64(len(physical)-size) < n {
		return "", "", false
	}
	rest := physical[size:]
	return string(rest[:n]), string(rest[n:]), true
}
