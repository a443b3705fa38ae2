package completion

import (
	"sort"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
)

// CompletionSet is a group of items replacing the same text range.
type CompletionSet struct {
	Offset int // start of the replaced text
	Length int // bytes replaced, up to the cursor
	Items  []Item
}

// SortItems orders items by score descending, then kind order, then name.
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if oa, ob := a.Kind().SortOrder(), b.Kind().SortOrder(); oa != ob {
			return oa < ob
		}
		return dialect.Fold(a.Name()) < dialect.Fold(b.Name())
	})
}

// setBuilder collects items into sets keyed by their anchor offset.
type setBuilder struct {
	cursor int
	order  []int
	sets   map[int]*CompletionSet
	seen   map[int]map[string]struct{}
}

func newSetBuilder(cursor int) *setBuilder {
	return &setBuilder{
		cursor: cursor,
		sets:   make(map[int]*CompletionSet),
		seen:   make(map[int]map[string]struct{}),
	}
}

// add files item under the set anchored at the offset of its filter.
// Items scored zero or below and duplicates are dropped.
func (b *setBuilder) add(item Item) {
	if item.Score() <= ScoreNone {
		return
	}
	offset := item.Filter().Offset
	if offset > b.cursor {
		offset = b.cursor
	}
	set, ok := b.sets[offset]
	if !ok {
		set = &CompletionSet{Offset: offset, Length: b.cursor - offset}
		b.sets[offset] = set
		b.seen[offset] = make(map[string]struct{})
		b.order = append(b.order, offset)
	}
	key := item.key()
	if _, dup := b.seen[offset][key]; dup {
		return
	}
	b.seen[offset][key] = struct{}{}
	set.Items = append(set.Items, item)
}

// len returns the number of items collected so far.
func (b *setBuilder) len() int {
	n := 0
	for _, s := range b.sets {
		n += len(s.Items)
	}
	return n
}

// build sorts every set, truncates it to maxItems (no limit when zero) and
// drops empty sets. The result is never nil.
func (b *setBuilder) build(maxItems int) []*CompletionSet {
	out := make([]*CompletionSet, 0, len(b.order))
	for _, offset := range b.order {
		set := b.sets[offset]
		if len(set.Items) == 0 {
			continue
		}
		SortItems(set.Items)
		if maxItems > 0 && len(set.Items) > maxItems {
			set.Items = set.Items[:maxItems]
		}
		out = append(out, set)
	}
	return out
}
