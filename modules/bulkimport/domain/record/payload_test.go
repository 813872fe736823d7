package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayload_Identifier(t *testing.T) {
	p := Payload{"id": "A1", "num": float64(42), "empty": "", "nil": nil}

	id, ok := p.Identifier("id")
	require.True(t, ok)
	require.Equal(t, "A1", id)

	id, ok = p.Identifier("num")
	require.True(t, ok)
	require.Equal(t, "42", id)

	_, ok = p.Identifier("empty")
	require.False(t, ok)

	_, ok = p.Identifier("nil")
	require.False(t, ok)

	_, ok = p.Identifier("missing")
	require.False(t, ok)
}

func TestPayload_CloneIsDeep(t *testing.T) {
	p := Payload{
		"name":   "a",
		"nested": map[string]any{"x": 1},
		"list":   []any{"one", "two"},
	}
	c := p.Clone()

	c["name"] = "b"
	c["nested"].(map[string]any)["x"] = 2
	c["list"].([]any)[0] = "changed"

	require.Equal(t, "a", p["name"])
	require.Equal(t, 1, p["nested"].(map[string]any)["x"])
	require.Equal(t, "one", p["list"].([]any)[0])
}

func TestMerge_Policy(t *testing.T) {
	dst := Payload{
		"scalar": "old",
		"keep":   "untouched",
		"obj":    map[string]any{"a": 1, "b": 2},
		"arr":    []any{1, 2, 3},
	}
	src := Payload{
		"scalar": "new",
		"obj":    map[string]any{"b": 20, "c": 30},
		"arr":    []any{9},
		"added":  "extra",
	}

	out := Merge(dst, src)

	require.Equal(t, "new", out["scalar"], "scalars overwritten")
	require.Equal(t, "untouched", out["keep"])
	require.Equal(t, map[string]any{"a": 1, "b": 20, "c": 30}, out["obj"], "objects merged key-by-key")
	require.Equal(t, []any{9}, out["arr"], "arrays replaced wholesale")
	require.Equal(t, "extra", out["added"])
}

func TestMerge_NilDestination(t *testing.T) {
	src := Payload{"a": 1}
	out := Merge(nil, src)
	require.Equal(t, Payload{"a": 1}, out)

	// must be a copy, not an alias
	out["a"] = 2
	require.Equal(t, 1, src["a"])
}
