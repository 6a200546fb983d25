package compositor

import "github.com/sourcegraph/conc/pool"

const (
	exprLayerCacheCapacity = 300
	exprLayerCacheEvictN   = 20
)

// ExpressionLayerCache caches geometrically transformed per-layer
// buffers (translated eyes, rotated eyebrows) keyed by their
// transform parameters, shared across frames regardless of which
// character or expression digest is being composed.
type ExpressionLayerCache struct {
	cache *orderedCache[TransformedLayer]
}

// NewExpressionLayerCache constructs an empty cache.
func NewExpressionLayerCache() *ExpressionLayerCache {
	return &ExpressionLayerCache{
		cache: newOrderedCache[TransformedLayer](exprLayerCacheCapacity, exprLayerCacheEvictN),
	}
}

// Len reports the current entry count.
func (c *ExpressionLayerCache) Len() int {
	return c.cache.len()
}

// GetOrBuild returns the cached transform for key, computing and
// storing it via build if absent.
func (c *ExpressionLayerCache) GetOrBuild(key string, build func() TransformedLayer) TransformedLayer {
	if v, ok := c.cache.get(key); ok {
		return v
	}
	v := build()
	c.cache.put(key, v)
	return v
}

// transformTask describes one pending geometric transform to resolve
// against the cache, run in parallel across a bounded worker pool.
type transformTask struct {
	Key   string
	Build func() TransformedLayer
}

// ResolveAll resolves every task concurrently (bounded by workers),
// returning results indexed identically to tasks. Uses a
// sourcegraph/conc pool so a panic in one transform does not take
// down the frame loop.
func (c *ExpressionLayerCache) ResolveAll(tasks []transformTask, workers int) []TransformedLayer {
	results := make([]TransformedLayer, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}

	p := pool.New().WithMaxGoroutines(workers)
	for i, task := range tasks {
		i, task := i, task
		p.Go(func() {
			results[i] = c.GetOrBuild(task.Key, task.Build)
		})
	}
	p.Wait()
	return results
}
