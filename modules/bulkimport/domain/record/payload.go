// Package record defines the schema-shaped payload staged records carry and
// the contract of the primary record store imports commit into.
package record

import (
	"fmt"
	"strconv"
)

// Payload is one mapped row. Values are the JSON scalar/object/array types.
type Payload map[string]any

// Identifier returns the string form of the target identifier field, or
// ok=false when the field is absent or empty.
func (p Payload) Identifier(field string) (string, bool) {
	v, ok := p[field]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// Clone deep-copies the payload so enrichment never aliases staged data.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Payload:
		return map[string]any(val.Clone())
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}

// Merge deep-merges src onto dst and returns dst. Object fields merge
// key-by-key, arrays are replaced wholesale, scalars are overwritten.
func Merge(dst, src Payload) Payload {
	if dst == nil {
		return src.Clone()
	}
	for k, v := range src {
		existing, ok := dst[k]
		if !ok {
			dst[k] = cloneValue(v)
			continue
		}
		existingMap, eIsMap := asMap(existing)
		srcMap, sIsMap := asMap(v)
		if eIsMap && sIsMap {
			dst[k] = map[string]any(Merge(existingMap, srcMap))
			continue
		}
		dst[k] = cloneValue(v)
	}
	return dst
}

func asMap(v any) (Payload, bool) {
	switch val := v.(type) {
	case map[string]any:
		return Payload(val), true
	case Payload:
		return val, true
	default:
		return nil, false
	}
}

func (p Payload) IsEmpty() bool {
	return len(p) == 0
}
