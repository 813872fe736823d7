package mappingspec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
)

func mustParse(t *testing.T, raw string) *Spec {
	t.Helper()
	var spec Spec
	require.NoError(t, json.Unmarshal([]byte(raw), &spec))
	return &spec
}

func mustMarshal(t *testing.T, spec *Spec) []byte {
	t.Helper()
	encoded, err := json.Marshal(spec)
	require.NoError(t, err)
	return encoded
}

func TestMap_FlatRoundTrip(t *testing.T) {
	spec := mustParse(t, `{"id": "ID", "name": "Full Name", "email": "E-Mail"}`)
	row := record.Payload{"ID": "A1", "Full Name": "Jan Novak", "E-Mail": "jan@example.com"}

	out := spec.Map(row)
	require.NotNil(t, out)
	require.Equal(t, "A1", out["id"])
	require.Equal(t, "Jan Novak", out["name"])
	require.Equal(t, "jan@example.com", out["email"])
}

func TestMap_AbsentFieldsPruned(t *testing.T) {
	spec := mustParse(t, `{"id": "ID", "name": "Full Name"}`)
	row := record.Payload{"ID": "A1"}

	out := spec.Map(row)
	require.Equal(t, record.Payload{"id": "A1"}, out)
	_, present := out["name"]
	require.False(t, present)
}

func TestMap_NestedObjectPruning(t *testing.T) {
	spec := mustParse(t, `{
		"id": "ID",
		"address": {"street": "Street", "city": "City"}
	}`)

	out := spec.Map(record.Payload{"ID": "A1", "Street": "Main St 1"})
	require.Equal(t, map[string]any{"street": "Main St 1"}, out["address"])

	// a node that evaluates empty after pruning is dropped entirely
	out = spec.Map(record.Payload{"ID": "A1"})
	_, present := out["address"]
	require.False(t, present)
}

func TestMap_ArrayDropsEmptyElements(t *testing.T) {
	spec := mustParse(t, `{
		"contacts": [
			{"phone": "Phone 1"},
			{"phone": "Phone 2"}
		]
	}`)

	out := spec.Map(record.Payload{"Phone 1": "111", "Phone 2": ""})
	require.Equal(t, []any{map[string]any{"phone": "111"}}, out["contacts"])

	out = spec.Map(record.Payload{})
	require.Nil(t, out, "empty array drops the whole record")
}

func TestMap_EmptyResultIsNil(t *testing.T) {
	spec := mustParse(t, `{"id": "ID"}`)
	require.Nil(t, spec.Map(record.Payload{"Other": "x"}))
	require.Nil(t, spec.Map(record.Payload{"ID": ""}))
}

func TestMap_DottedPathReachesNestedSource(t *testing.T) {
	spec := mustParse(t, `{"city": "address.city", "zip": "address.zip"}`)
	row := record.Payload{"address": map[string]any{"city": "Praha"}}

	out := spec.Map(row)
	require.Equal(t, record.Payload{"city": "Praha"}, out)
}

func TestMap_ExactKeyWinsOverDottedPath(t *testing.T) {
	spec := mustParse(t, `{"city": "address.city"}`)
	row := record.Payload{
		"address.city": "Brno",
		"address":      map[string]any{"city": "Praha"},
	}

	out := spec.Map(row)
	require.Equal(t, "Brno", out["city"])
}

func TestMap_ConstantNode(t *testing.T) {
	spec := mustParse(t, `{"id": "ID", "source": {"$const": "upload"}}`)

	out := spec.Map(record.Payload{"ID": "A1"})
	require.Equal(t, "upload", out["source"])

	// constants emit regardless of the row's content
	out = spec.Map(record.Payload{"Other": "x"})
	require.Equal(t, record.Payload{"source": "upload"}, out)

	roundTripped := mustParse(t, string(mustMarshal(t, spec)))
	require.Equal(t, spec.Map(record.Payload{"ID": "A1"}), roundTripped.Map(record.Payload{"ID": "A1"}))
}

func TestSpec_JSONRoundTrip(t *testing.T) {
	raw := `{"id":"ID","tags":[{"label":"T1"},{"label":"T2"}],"meta":{"note":"Note"}}`
	spec := mustParse(t, raw)

	encoded, err := json.Marshal(spec)
	require.NoError(t, err)

	reparsed := mustParse(t, string(encoded))
	row := record.Payload{"ID": "A1", "T1": "x", "Note": "hello"}
	require.Equal(t, spec.Map(row), reparsed.Map(row))
}

func TestSpec_RejectsUnsupportedNodes(t *testing.T) {
	var spec Spec
	require.Error(t, json.Unmarshal([]byte(`{"id": 42}`), &spec))
}
