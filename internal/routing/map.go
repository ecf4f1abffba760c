package routing

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// Map is the concurrent queue-id to shard-port routing map. It supports
// concurrent insert/remove/lookup without external synchronization by
// splitting keys across shardCount independently-locked buckets, selected
// by an FNV-1a hash of the key — the same hashing and per-bucket-mutex
// shape used elsewhere in this codebase for sharded registries, generalized
// here from one global lock to N so that inserts for unrelated queue-ids
// never contend.
type Map struct {
	shards [shardCount]mapShard
}

type mapShard struct {
	mu sync.RWMutex
	m  map[string]uint16
}

// NewMap creates an empty routing map.
func NewMap() *Map {
	rm := &Map{}
	for i := range rm.shards {
		rm.shards[i].m = make(map[string]uint16)
	}
	return rm
}

func (rm *Map) shardFor(key string) *mapShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &rm.shards[h.Sum32()%shardCount]
}

// Lookup returns the shard port for queueID and whether it was present.
func (rm *Map) Lookup(queueID string) (uint16, bool) {
	s := rm.shardFor(queueID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	port, ok := s.m[queueID]
	return port, ok
}

// Insert adds or overwrites the entry for queueID.
func (rm *Map) Insert(queueID string, port uint16) {
	s := rm.shardFor(queueID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[queueID] = port
}

// Remove deletes the entry for queueID, if present, and reports whether it
// was present.
func (rm *Map) Remove(queueID string) bool {
	s := rm.shardFor(queueID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[queueID]
	delete(s.m, queueID)
	return ok
}

// Len returns the total number of entries across all shards. Diagnostic
// use only; never called from the request path.
func (rm *Map) Len() int {
	total := 0
	for i := range rm.shards {
		rm.shards[i].mu.RLock()
		total += len(rm.shards[i].m)
		rm.shards[i].mu.RUnlock()
	}
	return total
}
