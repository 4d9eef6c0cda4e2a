package object

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of commit nodes kept by a CachingResolver
// when no size is configured.
const DefaultCacheSize = 1 << 16

// CachingResolver memoizes Resolve results of an underlying Resolver in a
// bounded LRU. Concurrent lookups of the same id share one call to the
// underlying resolver. Failed lookups are not cached.
type CachingResolver struct {
	next  Resolver
	cache *lru.Cache[Hash, CommitNode]
	group singleflight.Group
}

// NewCachingResolver wraps next with an LRU of the given size. A size <= 0
// selects DefaultCacheSize.
func NewCachingResolver(next Resolver, size int) (*CachingResolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[Hash, CommitNode](size)
	if err != nil {
		return nil, fmt.Errorf("caching resolver: %w", err)
	}
	return &CachingResolver{next: next, cache: cache}, nil
}

// Resolve returns the cached node for id or loads it. A shared load is not
// tied to any single caller's context: a caller that gives up returns its
// own ctx error while the load continues for the others.
func (c *CachingResolver) Resolve(ctx context.Context, id Hash) (CommitNode, error) {
	if node, ok := c.cache.Get(id); ok {
		return node, nil
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(id), func() (any, error) {
		if node, ok := c.cache.Get(id); ok {
			return node, nil
		}
		node, err := c.next.Resolve(loadCtx, id)
		if err != nil {
			return CommitNode{}, err
		}
		c.cache.Add(id, node)
		return node, nil
	})
	select {
	case <-ctx.Done():
		return CommitNode{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return CommitNode{}, res.Err
		}
		return res.Val.(CommitNode), nil
	}
}

func (c *CachingResolver) Exists(ctx context.Context, id Hash) (bool, error) {
	if c.cache.Contains(id) {
		return true, nil
	}
	return c.next.Exists(ctx, id)
}

// Len returns the number of cached nodes.
func (c *CachingResolver) Len() int { return c.cache.Len() }

// Purge drops every cached node.
func (c *CachingResolver) Purge() { c.cache.Purge() }
