package completion

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

var (
	tableKinds     = []metadata.Kind{metadata.KindTable, metadata.KindView}
	containerKinds = []metadata.Kind{metadata.KindSchema, metadata.KindCatalog}
)

var _ semantic.OriginVisitor = (*requestState)(nil)

// VisitValueRef proposes visible columns, row sources, procedures and
// builtin functions.
func (s *requestState) VisitValueRef(o *semantic.ValueRefFromContext) {
	ctx := o.Context
	if ctx == nil {
		ctx = s.scope
	}
	if ctx != nil {
		s.addColumns(ctx.Columns(), s.qualifyColumns(ctx), s.filter)
		s.addSources(ctx.Sources())
	}
	s.addProcedures()
	for _, f := range s.dialect.Functions() {
		s.offer(&BuiltinFunctionItem{Function: f}, s.filter)
	}
}

// VisitColumnRefFromSource proposes the columns of the source in front of
// the period.
func (s *requestState) VisitColumnRefFromSource(o *semantic.ColumnRefFromReferencedContext) {
	s.referenced = o.Source
	if s.in != nil && o.Context != nil {
		if parts := parser.Names(s.in.Qualifier()); len(parts) == 1 {
			byAlias, byName := o.Context.MatchSources(parts)
			if len(byAlias)+len(byName) > 0 {
				s.addMatchedSources(byAlias, byName)
				return
			}
		}
	}
	if o.Source != nil {
		s.addColumns(o.Source.Columns, false, s.filter)
	}
}

func (s *requestState) VisitColumnName(o *semantic.ColumnNameFromContext) {
	if o.Context != nil {
		s.addColumns(o.Context.Columns(), false, s.filter)
	}
}

func (s *requestState) VisitRowsSourceRef(o *semantic.RowsSourceRef) {
	if o.Context != nil {
		s.addSources(o.Context.Sources())
	}
}

func (s *requestState) VisitRowsDataRef(o *semantic.RowsDataRef) {
	if o.Data != nil {
		s.addColumns(o.Data.Columns(), false, s.filter)
	}
}

func (s *requestState) VisitMemberOfType(o *semantic.MemberOfType) {
	for _, f := range o.Type.Fields {
		s.offer(&CompositeFieldItem{Field: f, Owner: o.Type}, s.filter)
	}
}

// VisitDbObjectFromDbObject lists the children of a catalog object. Without
// expected kinds every child a name can refer to is listed; a single unknown
// kind lists what a table reference may continue with.
func (s *requestState) VisitDbObjectFromDbObject(o *semantic.DbObjectFromDbObject) {
	c, ok := o.Object.(metadata.Container)
	if !ok {
		return
	}
	s.addChildren(c, memberKinds(o.Object, o.Kinds))
}

// VisitDbObjectFromContext lists CTEs and the children of the default
// containers. With SearchGlobally every table of the default catalog is
// listed, qualified by its schema when outside the default one.
func (s *requestState) VisitDbObjectFromContext(o *semantic.DbObjectFromContext) {
	kinds := o.Kinds
	if len(kinds) == 0 {
		kinds = tableKinds
	}
	if o.Context != nil && hasKind(kinds, metadata.KindTable) {
		for _, cte := range o.Context.CTEs() {
			s.offer(&SubqueryAliasItem{Alias: cte.Name(), CTE: cte}, s.filter)
		}
	}

	wanted := append(append([]metadata.Kind(nil), kinds...), containerKinds...)
	for _, c := range s.exec.Exposed() {
		if s.cancelled() {
			return
		}
		s.addChildren(c, wanted)
	}

	if s.settings.SearchGlobally && hasKind(kinds, metadata.KindTable) {
		s.searchGlobally(kinds)
	}
}

// VisitExpandableTupleRef proposes the column list of "t.*" once the
// cursor is right after the star.
func (s *requestState) VisitExpandableTupleRef(o *semantic.ExpandableTupleRef) {
	if o.Tuple == nil || o.Source == nil || len(o.Source.Columns) == 0 {
		return
	}
	span := o.Tuple.Span()
	if s.offset != span.End.Offset {
		return
	}

	var prefix []string
	for _, n := range o.Tuple.Qualifier {
		prefix = append(prefix, n.Raw)
	}
	qualifier := strings.Join(prefix, ".")

	names := make([]string, 0, len(o.Source.Columns))
	replaced := make([]string, 0, len(o.Source.Columns))
	for _, col := range o.Source.Columns {
		names = append(names, col.Name)
		quoted := s.dialect.QuoteIdentifierIfNeeded(col.Name)
		if qualifier != "" {
			quoted = qualifier + "." + quoted
		}
		replaced = append(replaced, quoted)
	}

	item := &SpecialTextItem{
		Text:        strings.Join(names, ", "),
		Replacement: strings.Join(replaced, ", "),
		Description: "expand " + qualifier + ".*",
	}
	item.filter = NewWordEntry(span.Start.Offset, qualifier+".*")
	item.score = ScoreExact
	s.sets.add(item)
}

// offer scores item by its name against filter and files it.
func (s *requestState) offer(item Item, filter WordEntry) {
	b := item.base()
	b.filter = filter
	b.score = filter.Match(item.Name(), s.settings.SearchInsideWords)
	s.sets.add(item)
}

func (s *requestState) addKeywords(words []string) {
	for _, w := range words {
		s.offer(&ReservedWordItem{Word: w}, s.filter)
	}
}

// qualifyColumns decides whether value-position columns render with their
// source name: always when several sources or any alias are in use.
func (s *requestState) qualifyColumns(ctx *semantic.QueryDataContext) bool {
	switch s.settings.QualifyColumns {
	case QualifyAlways:
		return true
	case QualifyNever:
		return false
	}
	sources := ctx.Sources()
	if len(sources) > 1 {
		return true
	}
	for _, src := range sources {
		if src.Alias != nil {
			return true
		}
	}
	return false
}

func (s *requestState) addColumns(cols []*semantic.ResultColumn, qualify bool, filter WordEntry) {
	for _, col := range cols {
		if col.Name == "" {
			continue
		}
		item := &ColumnNameItem{Column: col}
		if qualify && col.Source != nil && col.Source.Name() != "" {
			item.Qualifier = []string{col.Source.Name()}
		}
		s.offer(item, filter)
	}
}

// addMatchedSources proposes the columns of sources matched by a one-part
// qualifier. Alias matches complete the column after the period;
// name matches replace the qualifier too, so they anchor at its start.
func (s *requestState) addMatchedSources(byAlias, byName []*semantic.SourceResolutionResult) {
	for _, src := range byAlias {
		s.addColumns(src.Columns, false, s.filter)
	}
	if len(byName) == 0 {
		return
	}
	qual := s.in.Qualifier()
	anchor := WordEntry{Offset: qual[0].Pos.Start.Offset, Text: s.filter.Text}
	typed := make([]string, len(qual))
	for i, n := range qual {
		typed[i] = n.Value
	}
	for _, src := range byName {
		for _, col := range src.Columns {
			s.offer(&ColumnNameItem{Column: col, Qualifier: typed}, anchor)
		}
	}
}

func (s *requestState) addSources(sources []*semantic.SourceResolutionResult) {
	for _, src := range sources {
		name := src.Name()
		if name == "" {
			continue
		}
		if src.Table != nil && src.Alias == nil {
			s.offer(&RealTableItem{Table: src.Table, Used: true}, s.filter)
			continue
		}
		s.offer(&SubqueryAliasItem{Alias: name, Source: src}, s.filter)
	}
}

// addProcedures proposes the procedures of the default containers.
func (s *requestState) addProcedures() {
	for _, c := range s.exec.Exposed() {
		if s.cancelled() {
			return
		}
		s.addChildren(c, []metadata.Kind{metadata.KindProcedure})
	}
}

// addChildren proposes the children of c whose kind is in kinds.
func (s *requestState) addChildren(c metadata.Container, kinds []metadata.Kind) {
	children, err := c.Children(s.ctx)
	if err != nil {
		s.metadataError(objectName(c), err)
		return
	}
	for _, child := range children {
		if s.cancelled() {
			return
		}
		if hasKind(kinds, child.Kind()) {
			s.addObject(child, nil)
		}
	}
}

func (s *requestState) addObject(obj metadata.Object, qualifier []string) {
	if t, ok := obj.(metadata.Table); ok {
		s.offer(&RealTableItem{Table: t, Used: s.isUsed(t), Qualifier: qualifier}, s.filter)
		return
	}
	s.offer(&DbObjectItem{Target: obj}, s.filter)
}

// isUsed reports whether t is already a source of the current scope.
func (s *requestState) isUsed(t metadata.Table) bool {
	if s.scope == nil {
		return false
	}
	for _, src := range s.scope.Sources() {
		if src.Table != nil && metadata.SameObject(src.Table, t) {
			return true
		}
	}
	return false
}

func (s *requestState) searchGlobally(kinds []metadata.Kind) {
	var top metadata.Container
	switch {
	case s.exec == nil:
		return
	case s.exec.DefaultCatalog != nil:
		top = s.exec.DefaultCatalog
	default:
		top = s.exec.Root
	}
	if top == nil {
		return
	}
	err := metadata.Walk(s.ctx, top, func(obj metadata.Object) error {
		switch obj.Kind() {
		case metadata.KindSchema:
			if s.exec.DefaultSchema != nil && metadata.SameObject(obj, s.exec.DefaultSchema) {
				return metadata.ErrSkip
			}
			return nil
		case metadata.KindCatalog:
			return nil
		}
		if !hasKind(kinds, obj.Kind()) {
			return nil
		}
		var qualifier []string
		if parent := obj.Parent(); parent != nil && parent.Kind() == metadata.KindSchema {
			qualifier = []string{parent.Name()}
		}
		s.addObject(obj, qualifier)
		return nil
	})
	if err != nil {
		s.metadataError(objectName(top), err)
	}
}

// cancelled reports whether the request was cancelled. Gathering stops and
// keeps what it has.
func (s *requestState) cancelled() bool {
	if err := s.ctx.Err(); err != nil {
		s.logger.Debug("completion cancelled", slog.Int("items", s.sets.len()))
		return true
	}
	return false
}

// metadataError logs a failed catalog call. The branch that made the call
// contributes no candidates.
func (s *requestState) metadataError(object string, err error) {
	if errors.Is(err, metadata.ErrCancelled) || s.ctx.Err() != nil {
		s.logger.Debug("metadata fetch cancelled", slog.String("object", object))
		return
	}
	s.logger.Warn("metadata fetch failed",
		slog.String("object", object),
		slog.String("error", err.Error()))
}

// memberKinds returns the kinds a name after "o." may refer to, given the
// expected kinds of the origin.
func memberKinds(o metadata.Object, expected []metadata.Kind) []metadata.Kind {
	switch {
	case len(expected) == 1 && expected[0] == metadata.KindUnknown:
		return tableReferenceKinds(o)
	case len(expected) > 0:
		return expected
	}
	switch o.Kind() {
	case metadata.KindRoot:
		return containerKinds
	case metadata.KindCatalog:
		return []metadata.Kind{metadata.KindSchema}
	}
	return []metadata.Kind{metadata.KindTable, metadata.KindView, metadata.KindProcedure}
}

// tableReferenceKinds returns the kinds on the way from o to a table.
func tableReferenceKinds(o metadata.Object) []metadata.Kind {
	switch o.Kind() {
	case metadata.KindRoot:
		return containerKinds
	case metadata.KindCatalog:
		return []metadata.Kind{metadata.KindSchema}
	}
	return tableKinds
}

func hasKind(kinds []metadata.Kind, k metadata.Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func objectName(o metadata.Object) string {
	name := strings.Join(metadata.QualifiedName(o), ".")
	if name == "" {
		return o.Kind().String()
	}
	return name
}
