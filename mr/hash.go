package mr

import "hash/fnv"

// Partition is the normative partitioning function: FNV-1a over the
// UTF-8 bytes of key, masked to the non-negative int32 range, then
// reduced mod r. Any conforming implementation must use this exact
// hash — intermediate files produced by one worker are consumed by
// another, and the two must agree on partition assignment.
func Partition(key string, r int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()&0x7fffffff) % r
}
