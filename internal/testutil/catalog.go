package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
)

// ShopCatalog builds an in-memory catalog "shop" with one schema "public":
//
//	customers(id, name, home address)      address = (street, city)
//	orders(id, total, customer_id)         customer_id -> customers.id
//	order_items(order_id, line)            (order_id, line) -> orders(id, total)
//	t1(id, name)
//	t2(id, t1_id)                          t1_id -> t1.id
//	refresh_totals(since date)             procedure
func ShopCatalog() *metadata.MemoryContainer {
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
		References("items_order_fk", []string{"order_id", "line"}, []string{"orders"}, []string{"id", "total"})
	public.Table("t1").
		Column("id", "integer").
		Column("name", "text")
	public.Table("t2").
		Column("id", "integer").
		Column("t1_id", "integer").
		References("t2_t1_fk", []string{"t1_id"}, []string{"t1"}, []string{"id"})
	public.Procedure("refresh_totals", "refresh_totals(since date)")
	return root
}

// ShopExecutionContext returns ShopCatalog with shop.public as the default
// schema.
func ShopExecutionContext(t testing.TB) *metadata.ExecutionContext {
	t.Helper()
	ec, err := metadata.NewExecutionContext(context.Background(), ShopCatalog(), "shop", "public")
	if err != nil {
		t.Fatalf("shop execution context: %v", err)
	}
	return ec
}

// SplitCursor removes the first "|" from text and returns the remaining
// text and the offset the marker was at.
func SplitCursor(t testing.TB, text string) (string, int) {
	t.Helper()
	i := strings.Index(text, "|")
	if i < 0 {
		t.Fatalf("no cursor marker in %q", text)
	}
	return text[:i] + text[i+1:], i
}
