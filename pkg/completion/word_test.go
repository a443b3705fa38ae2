package completion_test

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/stretchr/testify/assert"
)

func TestWordEntryMatch(t *testing.T) {
	tests := []struct {
		name        string
		filter      string
		candidate   string
		insideWords bool
		want        int
	}{
		{"empty filter", "", "orders", false, completion.ScoreAny},
		{"exact ignores case", "orders", "ORDERS", false, completion.ScoreExact},
		{"prefix", "ord", "orders", false, completion.ScorePrefix},
		{"prefix ignores case", "ORD", "Orders", false, completion.ScorePrefix},
		{"infix needs inside words", "tot", "order_total", false, completion.ScoreNone},
		{"word boundary", "tot", "order_total", true, completion.ScoreWordBoundary},
		{"infix", "rde", "orders", true, completion.ScoreInfix},
		{"subsequence", "odr", "orders", true, completion.ScoreSubsequence},
		{"no match", "xyz", "orders", true, completion.ScoreNone},
		{"longer than candidate", "orders_x", "orders", true, completion.ScoreNone},
		{"unicode folding", "straße", "STRASSE", false, completion.ScoreExact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := completion.NewWordEntry(0, tt.filter)
			assert.Equal(t, tt.want, w.Match(tt.candidate, tt.insideWords))
		})
	}
}

func TestWordEntryPrefixOnly(t *testing.T) {
	filters := []string{"i", "id", "na", "to", "cust", "_id", "x"}
	names := []string{"id", "name", "total", "customer_id", "t1_id", "ID", "Name"}

	for _, f := range filters {
		w := completion.NewWordEntry(0, f)
		for _, n := range names {
			score := w.Match(n, false)
			if strings.HasPrefix(strings.ToLower(n), strings.ToLower(f)) {
				assert.Positive(t, score, "%q against %q", n, f)
			} else {
				assert.Zero(t, score, "%q against %q", n, f)
			}
		}
	}
}

func TestWordEntry(t *testing.T) {
	w := completion.NewWordEntry(7, "OrD")
	assert.Equal(t, 7, w.Offset)
	assert.Equal(t, "ord", w.Text)
	assert.False(t, w.IsEmpty())
	assert.True(t, completion.NewWordEntry(3, "").IsEmpty())
}
