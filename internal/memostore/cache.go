package memostore

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/memolog/internal/models"
)

// Loader fetches the full corpus.
type Loader func(ctx context.Context) ([]models.Note, error)

// Cache holds a snapshot of every memo. Concurrent misses share one load.
type Cache struct {
	load  Loader
	group singleflight.Group

	mu    sync.RWMutex
	notes []models.Note
	gen   uint64
	valid bool
}

// NewCache creates an empty cache backed by load.
func NewCache(load Loader) *Cache {
	return &Cache{load: load}
}

// Notes returns the snapshot, loading it on first use or after Invalidate.
// The returned slice is a copy.
func (c *Cache) Notes(ctx context.Context) ([]models.Note, error) {
	c.mu.RLock()
	if c.valid {
		out := append([]models.Note(nil), c.notes...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()
	return c.Refresh(ctx)
}

// Invalidate drops the snapshot; the next Notes call reloads. A load already
// in flight is detached so later callers cannot join it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.notes = nil
	c.gen++
	c.mu.Unlock()
	c.group.Forget(corpusKey)
}

const corpusKey = "corpus"

type snapshot struct {
	notes []models.Note
	gen   uint64
}

// Refresh reloads the snapshot unconditionally. The result never predates
// an Invalidate that happened before the call.
func (c *Cache) Refresh(ctx context.Context) ([]models.Note, error) {
	c.mu.RLock()
	want := c.gen
	c.mu.RUnlock()

	for {
		v, err, _ := c.group.Do(corpusKey, func() (any, error) {
			c.mu.RLock()
			gen := c.gen
			c.mu.RUnlock()

			notes, err := c.load(ctx)
			if err != nil {
				return nil, err
			}

			c.mu.Lock()
			// A write landed during the load; serve it but do not cache.
			if c.gen == gen {
				c.notes = notes
				c.valid = true
			}
			c.mu.Unlock()
			return snapshot{notes: notes, gen: gen}, nil
		})
		if err != nil {
			return nil, err
		}
		snap := v.(snapshot)
		if snap.gen >= want {
			return append([]models.Note(nil), snap.notes...), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}
