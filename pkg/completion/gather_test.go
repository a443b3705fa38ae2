package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
)

func TestMemberKinds(t *testing.T) {
	root := metadata.NewMemory()
	shop := root.Catalog("shop")
	public := shop.Schema("public")
	unknown := []metadata.Kind{metadata.KindUnknown}

	tests := []struct {
		name     string
		object   metadata.Object
		expected []metadata.Kind
		want     []metadata.Kind
	}{
		{"root, any", root, nil, containerKinds},
		{"catalog, any", shop, nil, []metadata.Kind{metadata.KindSchema}},
		{"schema, any", public, nil, []metadata.Kind{metadata.KindTable, metadata.KindView, metadata.KindProcedure}},
		{"schema, explicit", public, []metadata.Kind{metadata.KindProcedure}, []metadata.Kind{metadata.KindProcedure}},
		{"root, unknown", root, unknown, containerKinds},
		{"catalog, unknown", shop, unknown, []metadata.Kind{metadata.KindSchema}},
		{"schema, unknown", public, unknown, tableKinds},
		{"unknown among others", public, []metadata.Kind{metadata.KindUnknown, metadata.KindProcedure},
			[]metadata.Kind{metadata.KindUnknown, metadata.KindProcedure}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, memberKinds(tt.object, tt.expected))
		})
	}
}
