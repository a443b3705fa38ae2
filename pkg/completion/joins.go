package completion

import (
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

// gatherJoins proposes join conditions over single-column foreign keys
// between the sources of the current scope. After "t." only conditions
// involving t are proposed, with t's column first.
func (s *requestState) gatherJoins() {
	if s.scope == nil {
		return
	}
	sources := s.scope.Sources()
	if len(sources) < 2 {
		return
	}
	for _, src := range sources {
		if src.Table == nil {
			continue
		}
		if s.cancelled() {
			return
		}
		fks, err := src.Table.ForeignKeys(s.ctx)
		if err != nil {
			s.metadataError(objectName(src.Table), err)
			continue
		}
		for _, fk := range fks {
			col, ref, ok := fk.SingleColumnReference()
			if !ok {
				continue
			}
			target := fk.ReferencedTable
			if target == nil {
				target = ref.Table()
			}
			for _, other := range sources {
				if other == src || other.Table == nil || !metadata.SameObject(other.Table, target) {
					continue
				}
				s.addJoin(src, col, other, ref)
			}
		}
	}
}

func (s *requestState) addJoin(a *semantic.SourceResolutionResult, aAttr metadata.Attribute, b *semantic.SourceResolutionResult, bAttr metadata.Attribute) {
	if s.referenced != nil {
		switch s.referenced {
		case a:
		case b:
			a, b = b, a
			aAttr, bAttr = bAttr, aAttr
		default:
			return
		}
	}

	left, right := sourceColumn(a, aAttr), sourceColumn(b, bAttr)
	if left == nil || right == nil {
		return
	}

	leftItem := &ColumnNameItem{Column: left}
	if s.referenced == nil {
		leftItem.Qualifier = []string{a.Name()}
	}
	rightItem := &ColumnNameItem{Column: right, Qualifier: []string{b.Name()}}
	for _, side := range []*ColumnNameItem{leftItem, rightItem} {
		side.filter = s.filter
		side.score = s.filter.Match(side.Name(), s.settings.SearchInsideWords)
	}

	item := &JoinConditionItem{Left: leftItem, Right: rightItem}
	best := leftItem
	if rightItem.score > leftItem.score {
		best = rightItem
	}
	item.score = best.score
	item.filter = best.filter
	s.sets.add(item)
}

// sourceColumn finds the column of src backed by attr.
func sourceColumn(src *semantic.SourceResolutionResult, attr metadata.Attribute) *semantic.ResultColumn {
	for _, col := range src.Columns {
		if col.Attribute != nil && metadata.SameObject(col.Attribute, attr) {
			return col
		}
	}
	return nil
}
