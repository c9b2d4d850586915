// Package shard spreads keys across a fixed number of shards.
package shard

import "hash/fnv"

// Index returns the shard, in [0, numShards), that key belongs to.
// With numShards <= 1 every key goes to shard 0.
func Index(key string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numShards))
}
