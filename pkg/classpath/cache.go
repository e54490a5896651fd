// SPDX-License-Identifier: MPL-2.0

package classpath

import (
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bootpack/bootpack/pkg/container"
)

// DefaultCacheSize bounds the number of nested archives kept open when no
// size is configured.
const DefaultCacheSize = 256

type (
	// Cache keeps opened nested archives keyed by location for the lifetime
	// of a launch. An evicted archive is closed once the last resource
	// reader opened from it is closed.
	Cache struct {
		mu      sync.Mutex
		handles *lru.Cache[string, *handle]
	}

	// handle counts the users of one archive. The archive closes when it has
	// left the cache and refs drops to zero.
	handle struct {
		archive *container.Archive
		refs    int
		evicted bool
	}

	// handleReader releases its handle when closed.
	handleReader struct {
		io.ReadCloser
		release func()
		once    sync.Once
	}
)

// NewCache creates a cache holding at most size archives.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &Cache{}
	// The callback runs with c.mu held: every Add, Get and Purge is.
	handles, err := lru.NewWithEvict(size, func(_ string, h *handle) {
		h.evicted = true
		if h.refs == 0 {
			_ = h.archive.Close()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive cache: %w", err)
	}
	c.handles = handles
	return c, nil
}

// Get returns the archive cached under key, opening it with open on a miss.
// The archive stays open until release is called, even if it is evicted in
// the meantime.
func (c *Cache) Get(key string, open func() (*container.Archive, error)) (a *container.Archive, release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.handles.Get(key)
	if !ok {
		if a, err = open(); err != nil {
			return nil, nil, err
		}
		h = &handle{archive: a}
		c.handles.Add(key, h)
	}
	h.refs++
	return h.archive, func() { c.release(h) }, nil
}

func (c *Cache) release(h *handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.refs--
	if h.refs == 0 && h.evicted {
		_ = h.archive.Close()
	}
}

// Len returns the number of cached archives.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles.Len()
}

// Close empties the cache. Archives with open readers close when their last
// reader does.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles.Purge()
}

func (r *handleReader) Close() error {
	err := r.ReadCloser.Close()
	r.once.Do(r.release)
	return err
}
