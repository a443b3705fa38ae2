package completion

import (
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
)

// Proposal is an item rendered for display and insertion.
type Proposal struct {
	Kind            Kind
	Score           int
	DisplayText     string
	ReplacementText string
	Description     string
	Object          metadata.Object
}

// Materialize renders the items of set, quoting identifiers for d.
func Materialize(set *CompletionSet, d *dialect.Dialect) []Proposal {
	if d == nil {
		d = dialect.Default()
	}
	m := &materializer{dialect: d}
	out := make([]Proposal, 0, len(set.Items))
	for _, item := range set.Items {
		m.p = Proposal{Kind: item.Kind(), Score: item.Score(), Object: item.Object()}
		item.Accept(m)
		out = append(out, m.p)
	}
	return out
}

type materializer struct {
	dialect *dialect.Dialect
	p       Proposal
}

var _ ItemVisitor = (*materializer)(nil)

func (m *materializer) quote(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = m.dialect.QuoteIdentifierIfNeeded(p)
	}
	return strings.Join(quoted, ".")
}

func (m *materializer) column(c *ColumnNameItem) string {
	return m.quote(append(append([]string(nil), c.Qualifier...), c.Column.Name)...)
}

func (m *materializer) VisitSubqueryAlias(i *SubqueryAliasItem) {
	m.p.DisplayText = i.Alias
	m.p.ReplacementText = m.quote(i.Alias)
	switch {
	case i.CTE != nil:
		m.p.Description = "common table expression"
	case i.Source != nil && len(i.Source.Path) > 0 && i.Source.Table != nil:
		m.p.Description = "alias of " + strings.Join(i.Source.Path, ".")
	default:
		m.p.Description = "subquery alias"
	}
}

func (m *materializer) VisitColumnName(i *ColumnNameItem) {
	m.p.DisplayText = columnText(i)
	m.p.ReplacementText = m.column(i)
	m.p.Description = i.Column.Type.Name
	if i.Column.Attribute != nil && i.Column.Attribute.Description() != "" {
		m.p.Description = i.Column.Attribute.Description()
	}
}

func (m *materializer) VisitRealTable(i *RealTableItem) {
	m.p.DisplayText = i.Table.Name()
	m.p.ReplacementText = m.quote(append(append([]string(nil), i.Qualifier...), i.Table.Name())...)
	m.p.Description = i.Table.Description()
	if m.p.Description == "" {
		m.p.Description = strings.Join(metadata.QualifiedName(i.Table), ".")
	}
}

func (m *materializer) VisitDbObject(i *DbObjectItem) {
	m.p.DisplayText = i.Target.Name()
	m.p.ReplacementText = m.quote(i.Target.Name())
	m.p.Description = i.Target.Description()
	if proc, ok := i.Target.(metadata.Procedure); ok && m.p.Description == "" {
		m.p.Description = proc.Signature()
	}
	if m.p.Description == "" {
		m.p.Description = i.Target.Kind().String()
	}
}

func (m *materializer) VisitCompositeField(i *CompositeFieldItem) {
	m.p.DisplayText = i.Field.Name
	m.p.ReplacementText = m.quote(i.Field.Name)
	m.p.Description = i.Field.Type.Name
	if i.Owner.Name != "" {
		m.p.Description += " in " + i.Owner.Name
	}
}

func (m *materializer) VisitJoinCondition(i *JoinConditionItem) {
	m.p.DisplayText = i.Name()
	m.p.ReplacementText = m.column(i.Left) + " = " + m.column(i.Right)
	m.p.Description = "join condition"
}

func (m *materializer) VisitReservedWord(i *ReservedWordItem) {
	m.p.DisplayText = i.Word
	m.p.ReplacementText = i.Word
	m.p.Description = "keyword"
}

func (m *materializer) VisitBuiltinFunction(i *BuiltinFunctionItem) {
	m.p.DisplayText = i.Function.Name
	if i.Function.Signature != "" {
		m.p.DisplayText = i.Function.Signature
	}
	m.p.ReplacementText = i.Function.Name
	m.p.Description = i.Function.Description
}

func (m *materializer) VisitSpecialText(i *SpecialTextItem) {
	m.p.DisplayText = i.Text
	m.p.ReplacementText = i.Replacement
	m.p.Description = i.Description
}

// ValidateProposal re-scores item against the text present when it is
// accepted: text is the current script and cursor the current cursor.
// The new score is stored on the item and returned; zero means the item
// no longer matches what was typed.
func ValidateProposal(item Item, text string, cursor int, settings Settings) int {
	b := item.base()
	start := item.Filter().Offset
	if start < 0 || start > cursor || cursor > len(text) {
		b.score = ScoreNone
		return b.score
	}
	live := text[start:cursor]

	if _, ok := item.(*SpecialTextItem); ok {
		if !strings.HasSuffix(live, "*") {
			b.score = ScoreNone
		}
		return b.score
	}

	frag := live
	if i := strings.LastIndexByte(frag, '.'); i >= 0 {
		start += i + 1
		frag = frag[i+1:]
	}
	if trimmed := strings.TrimLeft(frag, "\"`["); trimmed != frag {
		start += len(frag) - len(trimmed)
		frag = trimmed
	}
	if strings.ContainsAny(frag, " \t\r\n") {
		b.score = ScoreNone
		return b.score
	}

	w := NewWordEntry(start, frag)
	best := ScoreNone
	for _, name := range matchNames(item) {
		best = max(best, w.Match(name, settings.SearchInsideWords))
	}
	b.score = best
	return best
}
