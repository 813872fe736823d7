// Package mappingspec evaluates a mapping tree against raw rows. The tree is
// a tagged variant: a leaf names a source field, an object node describes a
// nested target structure, an array node describes repeated substructure, a
// constant node emits a fixed value.
//
// JSON form mirrors the variant: a string is a leaf, an object is an object
// node, an array is an array node, and an object with the single key "$const"
// is a constant:
//
//	{"name": "Full Name", "tags": [{"label": "Tag 1"}], "source": {"$const": "upload"}}
//
// A leaf may name a dotted path ("address.city") to reach into nested source
// objects; an exact top-level key always wins over path traversal. Mapping
// never fails: absent source fields become absent output and empty branches
// are pruned.
package mappingspec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
)

type Kind int

const (
	KindLeaf Kind = iota
	KindObject
	KindArray
	KindConst
)

const constKey = "$const"

type Spec struct {
	kind     Kind
	leaf     string
	object   map[string]*Spec
	array    []*Spec
	constant any
}

func Leaf(sourcePath string) *Spec {
	return &Spec{kind: KindLeaf, leaf: sourcePath}
}

func Const(value any) *Spec {
	return &Spec{kind: KindConst, constant: value}
}

func Object(fields map[string]*Spec) *Spec {
	return &Spec{kind: KindObject, object: fields}
}

func Array(elements ...*Spec) *Spec {
	return &Spec{kind: KindArray, array: elements}
}

func (s *Spec) Kind() Kind {
	return s.kind
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := fromRaw(raw)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

func (s *Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toRaw())
}

func fromRaw(raw any) (*Spec, error) {
	switch v := raw.(type) {
	case string:
		return Leaf(v), nil
	case map[string]any:
		if c, ok := v[constKey]; ok && len(v) == 1 {
			return Const(c), nil
		}
		fields := make(map[string]*Spec, len(v))
		for key, inner := range v {
			parsed, err := fromRaw(inner)
			if err != nil {
				return nil, err
			}
			fields[key] = parsed
		}
		return Object(fields), nil
	case []any:
		elements := make([]*Spec, 0, len(v))
		for _, inner := range v {
			parsed, err := fromRaw(inner)
			if err != nil {
				return nil, err
			}
			elements = append(elements, parsed)
		}
		return Array(elements...), nil
	default:
		return nil, fmt.Errorf("mappingspec: unsupported node type %T", raw)
	}
}

func (s *Spec) toRaw() any {
	switch s.kind {
	case KindLeaf:
		return s.leaf
	case KindConst:
		return map[string]any{constKey: s.constant}
	case KindObject:
		out := make(map[string]any, len(s.object))
		for key, inner := range s.object {
			out[key] = inner.toRaw()
		}
		return out
	default:
		out := make([]any, 0, len(s.array))
		for _, inner := range s.array {
			out = append(out, inner.toRaw())
		}
		return out
	}
}

// Map evaluates the spec against one raw row and returns the target-shaped
// payload, or nil when no non-empty field survives pruning.
func (s *Spec) Map(row record.Payload) record.Payload {
	out := s.eval(row)
	if out == nil {
		return nil
	}
	obj, ok := out.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	return record.Payload(obj)
}

// eval returns nil for empty branches so parents can prune them.
func (s *Spec) eval(row record.Payload) any {
	switch s.kind {
	case KindLeaf:
		v, ok := lookup(row, s.leaf)
		if !ok || isEmpty(v) {
			return nil
		}
		return v
	case KindConst:
		if isEmpty(s.constant) {
			return nil
		}
		return s.constant
	case KindObject:
		out := make(map[string]any, len(s.object))
		for key, inner := range s.object {
			if v := inner.eval(row); v != nil {
				out[key] = v
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		out := make([]any, 0, len(s.array))
		for _, inner := range s.array {
			if v := inner.eval(row); v != nil {
				out = append(out, v)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
}

// lookup resolves a source path against the row. An exact key match wins, so
// source columns whose names contain dots keep working; otherwise the path is
// walked segment by segment through nested objects.
func lookup(row record.Payload, path string) (any, bool) {
	if v, ok := row[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var cur any = map[string]any(row)
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}
