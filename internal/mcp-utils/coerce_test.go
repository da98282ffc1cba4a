package mcputils

// Test Plan for CoerceBindArguments:
// - String-encoded numbers, booleans and JSON arrays bind to typed fields
// - Properly typed arguments bind unchanged
// - Comma-separated strings bind to slices
// - Missing optional fields keep zero values
// - Non-numeric strings for int fields are an error

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type argumentMap map[string]any

func (m argumentMap) GetArguments() map[string]any { return m }

type queryArgs struct {
	Operation string   `json:"operation"`
	Target    string   `json:"target"`
	Depth     int      `json:"depth,omitempty"`
	Weight    float64  `json:"weight,omitempty"`
	Collapse  bool     `json:"collapse,omitempty"`
	Kinds     []string `json:"kinds,omitempty"`
}

func TestCoerceBindArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args argumentMap
		want queryArgs
	}{
		{
			name: "string encoded",
			args: argumentMap{"operation": "callers", "target": "app::main", "depth": "3", "weight": "1.5", "collapse": "true", "kinds": `["method", "closure"]`},
			want: queryArgs{Operation: "callers", Target: "app::main", Depth: 3, Weight: 1.5, Collapse: true, Kinds: []string{"method", "closure"}},
		},
		{
			name: "typed",
			args: argumentMap{"operation": "callees", "target": "lib::f", "depth": 2, "collapse": false, "kinds": []string{"function"}},
			want: queryArgs{Operation: "callees", Target: "lib::f", Depth: 2, Kinds: []string{"function"}},
		},
		{
			name: "json numbers",
			args: argumentMap{"target": "x", "depth": float64(4)},
			want: queryArgs{Target: "x", Depth: 4},
		},
		{
			name: "comma separated",
			args: argumentMap{"kinds": "method,static"},
			want: queryArgs{Kinds: []string{"method", "static"}},
		},
		{
			name: "missing optional",
			args: argumentMap{"target": "x"},
			want: queryArgs{Target: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got queryArgs
			require.NoError(t, CoerceBindArguments(tt.args, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceBindArguments_InvalidNumber(t *testing.T) {
	t.Parallel()

	var got queryArgs
	err := CoerceBindArguments(argumentMap{"depth": "deep"}, &got)
	assert.Error(t, err)
}
