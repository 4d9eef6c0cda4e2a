package repo

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/odvcencio/refgraph/pkg/object"
)

const mergeBaseCacheSize = 1024

type mergeBaseCacheKey struct {
	left  object.Hash
	right object.Hash
}

// mergeBaseCache remembers pairwise results. Commits never change, so an
// entry stays valid until the shallow boundary does.
type mergeBaseCache struct {
	entries *lru.Cache[mergeBaseCacheKey, []object.Hash]
}

func newMergeBaseCache() *mergeBaseCache {
	entries, err := lru.New[mergeBaseCacheKey, []object.Hash](mergeBaseCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &mergeBaseCache{entries: entries}
}

func canonicalMergeBaseCacheKey(a, b object.Hash) mergeBaseCacheKey {
	if a <= b {
		return mergeBaseCacheKey{left: a, right: b}
	}
	return mergeBaseCacheKey{left: b, right: a}
}

func (c *mergeBaseCache) load(a, b object.Hash) ([]object.Hash, bool) {
	return c.entries.Get(canonicalMergeBaseCacheKey(a, b))
}

func (c *mergeBaseCache) store(a, b object.Hash, bases []object.Hash) {
	c.entries.Add(canonicalMergeBaseCacheKey(a, b), bases)
}

func (c *mergeBaseCache) purge() { c.entries.Purge() }

func (c *mergeBaseCache) len() int { return c.entries.Len() }
