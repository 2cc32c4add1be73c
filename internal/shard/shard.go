// Package shard provides partition key generation for kinds spread over several
// DynamoDB partitions.
package shard

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// MaxShards is the largest supported shard count (two hex digits).
const MaxShards = 256

// PartitionKey computes the partition key an entity of kind with the given id is
// stored under. With numShards=1, every entity of the kind lands in shard "00".
// With numShards>1, entities are distributed by a hash of id.
func PartitionKey(kind, id string, numShards int) string {
	if numShards <= 1 {
		return Key(kind, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return Key(kind, int(h.Sum32()%uint32(numShards)))
}

// Key returns the partition key of shard n of kind.
func Key(kind string, n int) string {
	return fmt.Sprintf("%s#%02x", kind, n)
}

// KindOf recovers the kind from a partition key. Kinds may themselves contain
// '#'; only the trailing shard suffix is removed.
func KindOf(pk string) string {
	i := strings.LastIndexByte(pk, '#')
	if i < 0 {
		return pk
	}
	return pk[:i]
}
