package semantic_test

import (
	"testing"

	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
	"github.com/stretchr/testify/assert"
)

func TestSymbolBuilderDefaults(t *testing.T) {
	sym := semantic.NewSymbolBuilder(&parser.Name{Value: "x"}).Build()

	assert.Equal(t, semantic.ClassUnknown, sym.Classification())
	assert.IsType(t, &semantic.Unresolved{}, sym.Definition())
	assert.Nil(t, sym.Origin())
	assert.Nil(t, sym.Object())
	assert.Equal(t, "x(unknown)", sym.String())
}

func TestSymbolBuilderSetOnce(t *testing.T) {
	name := func() *parser.Name { return &parser.Name{Value: "x"} }

	tests := []struct {
		name  string
		build func()
	}{
		{"nil name", func() { semantic.NewSymbolBuilder(nil) }},
		{"classify twice", func() {
			semantic.NewSymbolBuilder(name()).Classify(semantic.ClassTable).Classify(semantic.ClassView)
		}},
		{"define twice", func() {
			semantic.NewSymbolBuilder(name()).Define(&semantic.Unresolved{}).Define(&semantic.Unresolved{})
		}},
		{"nil definition", func() { semantic.NewSymbolBuilder(name()).Define(nil) }},
		{"origin twice", func() {
			semantic.NewSymbolBuilder(name()).
				SetOrigin(&semantic.RowsSourceRef{}).
				SetOrigin(&semantic.RowsSourceRef{})
		}},
		{"modified after build", func() {
			b := semantic.NewSymbolBuilder(name())
			b.Build()
			b.Classify(semantic.ClassTable)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.build)
		})
	}
}

func TestSymbolBuilderNilOrigin(t *testing.T) {
	b := semantic.NewSymbolBuilder(&parser.Name{Value: "x"})
	assert.NotPanics(t, func() {
		b.SetOrigin(nil).SetOrigin(&semantic.RowsSourceRef{})
	})
	assert.False(t, b.Classified())
	b.Classify(semantic.ClassColumnDerived)
	assert.True(t, b.Classified())

	sym := b.Build()
	assert.Same(t, sym, b.Build())
	assert.IsType(t, &semantic.RowsSourceRef{}, sym.Origin())
}

func TestClassificationString(t *testing.T) {
	tests := []struct {
		class semantic.Classification
		want  string
	}{
		{semantic.ClassColumnReal, "column"},
		{semantic.ClassColumnDerived, "column-derived"},
		{semantic.ClassTableAlias, "alias"},
		{semantic.ClassCompositeField, "field"},
		{semantic.ClassPseudoColumn, "pseudo-column"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.class.String())
	}
}
