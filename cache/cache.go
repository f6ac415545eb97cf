// Package cache memoizes extraction results by content hash and format.
// Results are immutable once stored; callers must not modify them.
package cache

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"docqa/db"
	"docqa/document"
	"docqa/logging"
)

// Key identifies one extraction: the same bytes read as different formats
// are separate entries.
type Key struct {
	Hash   string
	Format string
}

// ExtractionCache stores extraction results.
type ExtractionCache interface {
	Get(ctx context.Context, key Key) (*document.ExtractionResult, bool)
	Put(ctx context.Context, key Key, res *document.ExtractionResult)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, Key) (*document.ExtractionResult, bool) { return nil, false }
func (Nop) Put(context.Context, Key, *document.ExtractionResult)        {}

// LRU is a bounded in-memory cache.
type LRU struct {
	items *lru.Cache[Key, *document.ExtractionResult]
}

// NewLRU returns a cache holding up to size entries.
func NewLRU(size int) (*LRU, error) {
	items, err := lru.New[Key, *document.ExtractionResult](size)
	if err != nil {
		return nil, err
	}
	return &LRU{items: items}, nil
}

func (c *LRU) Get(_ context.Context, key Key) (*document.ExtractionResult, bool) {
	return c.items.Get(key)
}

func (c *LRU) Put(_ context.Context, key Key, res *document.ExtractionResult) {
	if res == nil {
		return
	}
	c.items.Add(key, res)
}

// Len returns the number of cached entries.
func (c *LRU) Len() int { return c.items.Len() }

// Store is a persistent backing tier. *db.Database satisfies it.
type Store interface {
	GetCachedExtraction(ctx context.Context, hash, format string) (*document.ExtractionResult, error)
	PutCachedExtraction(ctx context.Context, hash, format string, res *document.ExtractionResult) error
}

// Tiered checks memory first and the store second, promoting store hits
// into memory. Store failures degrade to misses.
type Tiered struct {
	memory ExtractionCache
	store  Store
	logger *logging.Logger
}

// NewTiered layers memory over store. A nil memory tier is allowed.
func NewTiered(memory ExtractionCache, store Store, logger *logging.Logger) *Tiered {
	if memory == nil {
		memory = Nop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tiered{memory: memory, store: store, logger: logger.Named("cache")}
}

func (c *Tiered) Get(ctx context.Context, key Key) (*document.ExtractionResult, bool) {
	if res, ok := c.memory.Get(ctx, key); ok {
		return res, true
	}
	res, err := c.store.GetCachedExtraction(ctx, key.Hash, key.Format)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			c.logger.Warn("extraction cache read failed", zap.String("format", key.Format), zap.Error(err))
		}
		return nil, false
	}
	c.memory.Put(ctx, key, res)
	return res, true
}

func (c *Tiered) Put(ctx context.Context, key Key, res *document.ExtractionResult) {
	if res == nil {
		return
	}
	c.memory.Put(ctx, key, res)
	if err := c.store.PutCachedExtraction(ctx, key.Hash, key.Format, res); err != nil {
		c.logger.Warn("extraction cache write failed", zap.String("format", key.Format), zap.Error(err))
	}
}

// New picks an implementation from the configured memory size and optional
// store.
func New(size int, store Store, logger *logging.Logger) (ExtractionCache, error) {
	var memory ExtractionCache = Nop{}
	if size > 0 {
		l, err := NewLRU(size)
		if err != nil {
			return nil, err
		}
		memory = l
	}
	if store == nil {
		return memory, nil
	}
	return NewTiered(memory, store, logger), nil
}
