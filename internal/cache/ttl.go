// Package cache provides a bounded TTL cache with per-key request coalescing.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// TTL is an LRU cache whose entries expire after a fixed duration.
// Concurrent misses for the same key share a single computation.
type TTL[K comparable, V any] struct {
	lru   *expirable.LRU[K, V]
	group singleflight.Group
	keyFn func(K) string
	ttl   time.Duration
}

// New creates a cache holding at most size entries for ttl each.
// keyFn names a key for request coalescing.
func New[K comparable, V any](size int, ttl time.Duration, keyFn func(K) string) *TTL[K, V] {
	return &TTL[K, V]{
		lru:   expirable.NewLRU[K, V](size, nil, ttl),
		keyFn: keyFn,
		ttl:   ttl,
	}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

type computed[V any] struct {
	value V
}

// GetOrCompute returns the cached value for key, or runs fn once across all
// concurrent callers. fn reports whether its result may be cached.
// The hit result is true only when the value came from the cache.
//
// fn receives a context detached from any single caller's cancellation, so a
// caller that gives up returns its own ctx.Err() while the others keep waiting
// for the shared result. fn is responsible for bounding its own runtime.
func (c *TTL[K, V]) GetOrCompute(ctx context.Context, key K, fn func(context.Context) (V, bool, error)) (value V, hit bool, err error) {
	if v, ok := c.lru.Get(key); ok {
		return v, true, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.keyFn(key), func() (any, error) {
		if v, ok := c.lru.Get(key); ok {
			return computed[V]{value: v}, nil
		}
		v, cacheable, err := fn(detached)
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.lru.Add(key, v)
		}
		return computed[V]{value: v}, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(computed[V]).value, false, nil
	}
}

// Clear drops every entry.
func (c *TTL[K, V]) Clear() {
	c.lru.Purge()
}

func (c *TTL[K, V]) Len() int {
	return c.lru.Len()
}

func (c *TTL[K, V]) TTL() time.Duration {
	return c.ttl
}
