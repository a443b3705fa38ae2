package metadata_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shopCatalog builds shop.public.{customers, orders} with orders.customer_id
// referencing customers.id and a compound key on order_items.
func shopCatalog() *metadata.MemoryContainer {
	root := metadata.NewMemory()
	public := root.Catalog("shop").Schema("public")
	public.DefineType("address",
		metadata.Field{Name: "street", Type: metadata.DataType{Name: "text"}},
		metadata.Field{Name: "city", Type: metadata.DataType{Name: "text"}},
	)
	public.Table("customers").
		Column("id", "integer").
		Column("name", "text").
		Column("home", "address")
	public.Table("orders").
		Column("id", "integer").
		Column("total", "numeric").
		Column("customer_id", "integer").
		References("orders_customer_fk", []string{"customer_id"}, []string{"customers"}, []string{"id"})
	public.Table("order_items").
		Column("order_id", "integer").
		Column("line", "integer").
		References("items_order_fk", []string{"order_id", "line"}, []string{"public", "orders"}, []string{"id", "total"})
	public.Procedure("refresh_totals", "refresh_totals(since date)")
	return root
}

func TestMemoryTree(t *testing.T) {
	ctx := context.Background()
	root := shopCatalog()

	obj, err := metadata.Find(ctx, root, []string{"shop", "public", "orders"})
	require.NoError(t, err)
	assert.Equal(t, metadata.KindTable, obj.Kind())
	assert.Equal(t, []string{"shop", "public", "orders"}, metadata.QualifiedName(obj))

	table, ok := obj.(metadata.Table)
	require.True(t, ok)
	attrs, err := table.Attributes(ctx)
	require.NoError(t, err)
	require.Len(t, attrs, 3)
	assert.Equal(t, "customer_id", attrs[2].Name())
	assert.Equal(t, 3, attrs[2].Ordinal())
	assert.Equal(t, "integer", attrs[2].DataType().Name)
	assert.True(t, metadata.SameObject(table, attrs[2].Table()))
}

func TestChildLookup(t *testing.T) {
	ctx := context.Background()
	root := shopCatalog()
	public, err := metadata.Find(ctx, root, []string{"shop", "public"})
	require.NoError(t, err)
	schema := public.(metadata.Container)

	tests := []struct {
		name    string
		lookup  string
		wantErr bool
	}{
		{"exact", "orders", false},
		{"case insensitive", "ORDERS", false},
		{"missing", "invoices", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := schema.Child(ctx, tt.lookup)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, metadata.IsNotFound(err))
				assert.Contains(t, err.Error(), "shop.public")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "orders", obj.Name())
		})
	}
}

func TestForeignKeys(t *testing.T) {
	ctx := context.Background()
	root := shopCatalog()

	orders, err := metadata.Find(ctx, root, []string{"shop", "public", "orders"})
	require.NoError(t, err)
	keys, err := orders.(metadata.Table).ForeignKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	col, ref, ok := keys[0].SingleColumnReference()
	require.True(t, ok)
	assert.Equal(t, "customer_id", col.Name())
	assert.Equal(t, "id", ref.Name())
	assert.Equal(t, "customers", keys[0].ReferencedTable.Name())

	items, err := metadata.Find(ctx, root, []string{"shop", "public", "order_items"})
	require.NoError(t, err)
	keys, err = items.(metadata.Table).ForeignKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	_, _, ok = keys[0].SingleColumnReference()
	assert.False(t, ok, "compound key has no single column reference")
}

func TestCompositeType(t *testing.T) {
	ctx := context.Background()
	obj, err := metadata.Find(ctx, shopCatalog(), []string{"shop", "public", "customers"})
	require.NoError(t, err)
	attrs, err := obj.(metadata.Table).Attributes(ctx)
	require.NoError(t, err)

	home := attrs[2].DataType()
	assert.True(t, home.IsComposite())
	f, ok := home.Field("CITY")
	require.True(t, ok)
	assert.Equal(t, "city", f.Name)
	_, ok = home.Field("zip")
	assert.False(t, ok)
}

func TestExecutionContext(t *testing.T) {
	ctx := context.Background()
	root := shopCatalog()

	ec, err := metadata.NewExecutionContext(ctx, root, "", "public")
	require.NoError(t, err)
	require.NotNil(t, ec.DefaultCatalog)
	assert.Equal(t, "shop", ec.DefaultCatalog.Name())
	require.NotNil(t, ec.DefaultSchema)
	assert.Equal(t, "public", ec.DefaultSchema.Name())

	exposed := ec.Exposed()
	require.Len(t, exposed, 3)
	assert.Equal(t, "public", exposed[0].Name())
	assert.Equal(t, metadata.KindRoot, exposed[2].Kind())

	_, err = metadata.NewExecutionContext(ctx, root, "", "missing")
	assert.True(t, metadata.IsNotFound(err))

	var nilEC *metadata.ExecutionContext
	assert.Empty(t, nilEC.Exposed())
}

func TestFindFrom(t *testing.T) {
	ctx := context.Background()
	root := shopCatalog()
	orders, err := metadata.Find(ctx, root, []string{"shop", "public", "orders"})
	require.NoError(t, err)

	obj, err := metadata.FindFrom(ctx, orders.Parent(), []string{"customers"})
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "public", "customers"}, metadata.QualifiedName(obj))

	obj, err = metadata.FindFrom(ctx, orders.Parent(), []string{"shop", "public", "customers"})
	require.NoError(t, err)
	assert.Equal(t, "customers", obj.Name())

	_, err = metadata.FindFrom(ctx, orders.Parent(), []string{"nope"})
	assert.True(t, metadata.IsNotFound(err))
}

func TestWalk(t *testing.T) {
	var names []string
	err := metadata.Walk(context.Background(), shopCatalog(), func(obj metadata.Object) error {
		names = append(names, obj.Name())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "public", "customers", "orders", "order_items", "refresh_totals"}, names)
}

func TestWalkSkip(t *testing.T) {
	var names []string
	err := metadata.Walk(context.Background(), shopCatalog(), func(obj metadata.Object) error {
		names = append(names, obj.Name())
		if obj.Kind() == metadata.KindSchema {
			return metadata.ErrSkip
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "public"}, names)
}

func TestWalkCancelled(t *testing.T) {
	root := metadata.NewMemory()
	schema := root.Schema("big")
	for i := 0; i < 1000; i++ {
		schema.Table(fmt.Sprintf("t%d", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	visited := 0
	err := metadata.Walk(ctx, root, func(obj metadata.Object) error {
		visited++
		if visited == 10 {
			cancel()
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, metadata.ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 10, visited)
}
