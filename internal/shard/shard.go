// Package shard maps string keys onto a fixed number of lock stripes.
package shard

import "hash/fnv"

// DefaultCount is the stripe count used by in-memory stores.
const DefaultCount = 32

// Index returns the stripe for key in [0, n).
func Index(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
