// Package index implements the Datum Index: a concurrent map from content
// digest to every known PartRef that produces that digest, built during a
// scan and consulted read-only during planning.
package index

import (
	"sync"

	"github.com/austin/romkeep/internal/digest"
	"github.com/austin/romkeep/internal/part"
)

const shardCount = 64

// Index is a sharded digest -> []part.Ref multimap. Sharding by the
// digest's first byte keeps insert contention low during a parallel scan;
// readers during planning take the same shard locks, so Index remains safe
// to query while a later scan phase is still inserting, though callers
// should otherwise finish scanning before planning begins.
type Index struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[digest.Digest][]part.Ref
}

// New returns an empty Index ready for concurrent insertion.
func New() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i].entries = make(map[digest.Digest][]part.Ref)
	}
	return idx
}

func (idx *Index) shardFor(d digest.Digest) *shard {
	return &idx.shards[d[0]%shardCount]
}

// Insert records that ref produces digest d. Duplicate (digest, Ref.Key())
// pairs are deduplicated, since the same part is often discovered more than
// once (e.g. a file already correctly placed in two games' destinations).
func (idx *Index) Insert(d digest.Digest, ref part.Ref) {
	s := idx.shardFor(d)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.entries[d]
	key := ref.Key()
	for _, e := range existing {
		if e.Key() == key {
			return
		}
	}
	s.entries[d] = append(existing, ref)
}

// Lookup returns every known PartRef producing digest d, or nil if none has
// been recorded. The returned slice is a copy; callers may not mutate the
// index through it.
func (idx *Index) Lookup(d digest.Digest) []part.Ref {
	s := idx.shardFor(d)
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[d]
	if len(entries) == 0 {
		return nil
	}
	out := make([]part.Ref, len(entries))
	copy(out, entries)
	return out
}

// Has reports whether any PartRef is known to produce digest d.
func (idx *Index) Has(d digest.Digest) bool {
	s := idx.shardFor(d)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[d]) > 0
}

// Len returns the number of distinct digests recorded.
func (idx *Index) Len() int {
	total := 0
	for i := range idx.shards {
		idx.shards[i].mu.RLock()
		total += len(idx.shards[i].entries)
		idx.shards[i].mu.RUnlock()
	}
	return total
}
