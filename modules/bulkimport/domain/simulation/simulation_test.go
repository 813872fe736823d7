package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
)

type fakeHook struct {
	name string
	fn   func(p record.Payload, op Operation) (record.Payload, error)
}

func (h *fakeHook) Name() string { return h.name }
func (h *fakeHook) Simulate(_ context.Context, p record.Payload, op Operation) (record.Payload, error) {
	return h.fn(p, op)
}

func TestChain_EnrichmentFlowsForward(t *testing.T) {
	first := &fakeHook{name: "first", fn: func(p record.Payload, _ Operation) (record.Payload, error) {
		return record.Payload{"computed": "x"}, nil
	}}
	second := &fakeHook{name: "second", fn: func(p record.Payload, _ Operation) (record.Payload, error) {
		require.Equal(t, "x", p["computed"], "second hook must see first hook's enrichment")
		return record.Payload{"id": "overridden"}, nil
	}}

	chain := NewChain(first, second)
	out, err := chain.Simulate(context.Background(), record.Payload{"id": "A1"}, OperationCreate)
	require.NoError(t, err)
	require.Equal(t, "overridden", out["id"], "enrichment replaces conflicting keys")
	require.Equal(t, "x", out["computed"])
}

func TestChain_FirstErrorWins(t *testing.T) {
	reject := &fakeHook{name: "gatekeeper", fn: func(record.Payload, Operation) (record.Payload, error) {
		return nil, &Error{Source: "gatekeeper", Message: "not allowed"}
	}}
	called := false
	after := &fakeHook{name: "after", fn: func(record.Payload, Operation) (record.Payload, error) {
		called = true
		return nil, nil
	}}

	_, err := NewChain(reject, after).Simulate(context.Background(), record.Payload{}, OperationUpdate)
	require.Error(t, err)
	require.False(t, called, "hooks after a rejection must not run")

	hookErr := &Error{}
	require.ErrorAs(t, err, &hookErr)
	require.Equal(t, "gatekeeper", hookErr.Source)
}

func TestChain_DoesNotMutateInput(t *testing.T) {
	enrich := &fakeHook{name: "enrich", fn: func(record.Payload, Operation) (record.Payload, error) {
		return record.Payload{"extra": true}, nil
	}}

	in := record.Payload{"id": "A1"}
	out, err := NewChain(enrich).Simulate(context.Background(), in, OperationCreate)
	require.NoError(t, err)
	require.Equal(t, true, out["extra"])
	_, mutated := in["extra"]
	require.False(t, mutated)
}

func TestChain_EmptyPassthrough(t *testing.T) {
	in := record.Payload{"id": "A1"}
	out, err := NewChain().Simulate(context.Background(), in, OperationCreate)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.True(t, NewChain().Empty())

	var nilChain *Chain
	require.True(t, nilChain.Empty())
}
