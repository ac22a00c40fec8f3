// Package schema memoizes parsed grammars by schema path.
//
// A Cache is an explicit object: hosts build one with a Loader and a
// capacity and pass it to every validator that needs constraints. Two
// resolves of the same path return the same *rng.Constraints until the
// entry is evicted, invalidated or cleared.
package schema

import (
	"context"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/JuniperTag/core/cache"
	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	"github.com/FocuswithJustin/JuniperTag/core/rng"
	"github.com/FocuswithJustin/JuniperTag/internal/logging"
)

// DefaultMaxSize is used when Options.MaxSize is zero.
const DefaultMaxSize = 16

// Options configures a Cache.
type Options struct {
	// MaxSize bounds the number of cached grammars (0 = DefaultMaxSize).
	MaxSize int

	// Encoding is passed to the loader (empty = DefaultEncoding).
	Encoding string
}

// Cache resolves schema paths to parsed constraints.
type Cache struct {
	loader   Loader
	encoding string
	lru      cache.Cache[string, *rng.Constraints]
	group    singleflight.Group
}

// NewCache creates a schema cache backed by loader.
func NewCache(loader Loader, opts Options) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Encoding == "" {
		opts.Encoding = DefaultEncoding
	}
	return &Cache{
		loader:   loader,
		encoding: opts.Encoding,
		lru: cache.NewLRU(cache.Config[string, *rng.Constraints]{
			MaxSize: opts.MaxSize,
			OnEvict: func(p string, _ *rng.Constraints, reason cache.EvictReason) {
				logging.SchemaEvicted(p, reason.String())
			},
		}),
	}
}

// Resolve returns the constraints for path, loading and parsing the grammar
// on a miss. Concurrent misses for one path share a single load. Loader and
// parse failures are returned unchanged and nothing is cached.
func (c *Cache) Resolve(ctx context.Context, p string) (*rng.Constraints, error) {
	start := time.Now()
	if cons, ok := c.lru.Get(p); ok {
		logging.SchemaResolved(p, true, time.Since(start))
		return cons, nil
	}

	// The shared load must not fail for every waiter because the caller
	// that started it went away.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(p, func() (any, error) {
		// A racing call may have populated the entry between Get and Do.
		if cons, ok := c.lru.Peek(p); ok {
			return cons, nil
		}
		raw, err := c.loader.Load(loadCtx, p, c.encoding)
		if err != nil {
			return nil, err
		}
		cons, err := parse(p, raw)
		if err != nil {
			return nil, err
		}
		c.lru.Put(p, cons)
		return cons, nil
	})
	if err != nil {
		logging.SchemaLoadFailed(p, err)
		return nil, err
	}
	logging.SchemaResolved(p, false, time.Since(start))
	return v.(*rng.Constraints), nil
}

// parse picks the grammar syntax from the file extension.
func parse(p, raw string) (*rng.Constraints, error) {
	var (
		cons *rng.Constraints
		err  error
	)
	if strings.EqualFold(path.Ext(p), ".rnc") {
		cons, err = rng.ParseCompact(raw)
	} else {
		cons, err = rng.Parse(raw)
	}
	if err != nil {
		var sfe *jerrors.SchemaFormatError
		if jerrors.As(err, &sfe) && sfe.Path == "" {
			sfe.Path = p
		}
		return nil, err
	}
	return cons, nil
}

// Invalidate drops path from the cache. It reports whether an entry existed.
func (c *Cache) Invalidate(p string) bool {
	return c.lru.Remove(p)
}

// Clear drops every cached grammar.
func (c *Cache) Clear() {
	c.lru.Clear()
}

// Stats returns hit, miss and eviction counters.
func (c *Cache) Stats() cache.Stats {
	return c.lru.Stats()
}

// Entries lists cached schema paths with their last access time, most
// recently used first.
func (c *Cache) Entries() []cache.EntryInfo[string] {
	return c.lru.Entries()
}
