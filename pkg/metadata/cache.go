package metadata

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes the listings of a provider. Concurrent requests for the
// same listing share one fetch. Failed fetches are not remembered, so a
// cancelled request does not poison later ones.
type Cache struct {
	root   Container
	logger *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]any
	gen     uint64
}

// NewCache wraps root. A nil logger discards output.
func NewCache(root Container, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		root:    root,
		logger:  logger,
		entries: make(map[string]any),
	}
}

// Root returns the cached view of the provider root.
func (c *Cache) Root() Container {
	return &cachedContainer{Container: c.root, cache: c}
}

// Invalidate drops every memoized listing.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]any)
	c.gen++
	c.logger.Debug("metadata cache invalidated")
}

func (c *Cache) load(key string, fetch func() (any, error)) (any, error) {
	c.mu.RLock()
	v, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})
	if shared {
		c.logger.Debug("metadata fetch shared", slog.String("key", key))
	}
	return v, err
}

func (c *Cache) wrap(parent Object, obj Object) Object {
	switch o := obj.(type) {
	case Container:
		return &cachedContainer{Container: o, cache: c, parent: parent}
	case Table:
		return &cachedTable{Table: o, cache: c, parent: parent}
	default:
		return obj
	}
}

func cacheKey(prefix string, o Object) string {
	return prefix + ":" + o.Kind().String() + ":" + strings.Join(QualifiedName(o), "\x00")
}

type cachedContainer struct {
	Container
	cache  *Cache
	parent Object
}

func (c *cachedContainer) Parent() Object {
	if c.parent != nil {
		return c.parent
	}
	return c.Container.Parent()
}

func (c *cachedContainer) Children(ctx context.Context) ([]Object, error) {
	if err := CheckContext(ctx); err != nil {
		return nil, err
	}
	v, err := c.cache.load(cacheKey("children", c), func() (any, error) {
		children, err := c.Container.Children(ctx)
		if err != nil {
			return nil, err
		}
		wrapped := make([]Object, len(children))
		for i, child := range children {
			wrapped[i] = c.cache.wrap(c, child)
		}
		return wrapped, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Object), nil
}

func (c *cachedContainer) Child(ctx context.Context, name string) (Object, error) {
	children, err := c.Children(ctx)
	if err != nil {
		return nil, err
	}
	return ChildByName(c, children, name)
}

type cachedTable struct {
	Table
	cache  *Cache
	parent Object
}

func (t *cachedTable) Parent() Object {
	if t.parent != nil {
		return t.parent
	}
	return t.Table.Parent()
}

func (t *cachedTable) Attributes(ctx context.Context) ([]Attribute, error) {
	if err := CheckContext(ctx); err != nil {
		return nil, err
	}
	v, err := t.cache.load(cacheKey("attributes", t), func() (any, error) {
		return t.Table.Attributes(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Attribute), nil
}

func (t *cachedTable) ForeignKeys(ctx context.Context) ([]*ForeignKey, error) {
	if err := CheckContext(ctx); err != nil {
		return nil, err
	}
	v, err := t.cache.load(cacheKey("foreign_keys", t), func() (any, error) {
		return t.Table.ForeignKeys(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*ForeignKey), nil
}
