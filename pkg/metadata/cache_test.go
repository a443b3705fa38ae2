package metadata_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leapstack-labs/sqlassist/internal/testutil"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRoot counts Children calls on the root.
type countingRoot struct {
	*metadata.MemoryContainer
	calls atomic.Int32
}

func (c *countingRoot) Children(ctx context.Context) ([]metadata.Object, error) {
	c.calls.Add(1)
	return c.MemoryContainer.Children(ctx)
}

func TestCacheMemoizes(t *testing.T) {
	ctx := context.Background()
	root := &countingRoot{MemoryContainer: shopCatalog()}
	cache := metadata.NewCache(root, testutil.NewTestLogger(t))
	cached := cache.Root()

	for i := 0; i < 3; i++ {
		children, err := cached.Children(ctx)
		require.NoError(t, err)
		require.Len(t, children, 1)
	}
	assert.Equal(t, int32(1), root.calls.Load())

	cache.Invalidate()
	_, err := cached.Children(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), root.calls.Load())
}

func TestCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	root := &countingRoot{MemoryContainer: shopCatalog()}
	cached := metadata.NewCache(root, nil).Root()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Children(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, root.calls.Load(), int32(16))
	assert.GreaterOrEqual(t, root.calls.Load(), int32(1))
}

func TestCacheWrapsDescendants(t *testing.T) {
	ctx := context.Background()
	cached := metadata.NewCache(shopCatalog(), nil).Root()

	obj, err := metadata.Find(ctx, cached, []string{"SHOP", "public", "orders"})
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "public", "orders"}, metadata.QualifiedName(obj))

	table, ok := obj.(metadata.Table)
	require.True(t, ok)
	attrs, err := table.Attributes(ctx)
	require.NoError(t, err)
	assert.Len(t, attrs, 3)
	assert.True(t, metadata.SameObject(table, attrs[0].Table()))

	keys, err := table.ForeignKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	cached := metadata.NewCache(shopCatalog(), nil).Root()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cached.Children(ctx)
	require.ErrorIs(t, err, metadata.ErrCancelled)

	children, err := cached.Children(context.Background())
	require.NoError(t, err)
	assert.Len(t, children, 1)
}
