package hooks_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/modules/bulkimport/domain/simulation"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/hooks"
)

func TestHTTPHook_Enrichment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Record    record.Payload `json:"record"`
			Operation string         `json:"operation"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "POST", req.Operation)
		require.Equal(t, "a1", req.Record["id"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(record.Payload{"price": 9.5}))
	}))
	defer srv.Close()

	hook, err := hooks.NewHTTPHook(srv.URL, time.Second)
	require.NoError(t, err)

	enriched, err := hook.Simulate(context.Background(), record.Payload{"id": "a1"}, simulation.OperationCreate)
	require.NoError(t, err)
	require.Equal(t, record.Payload{"price": 9.5}, enriched)
}

func TestHTTPHook_EmptyBodyMeansNoEnrichment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook, err := hooks.NewHTTPHook(srv.URL, time.Second)
	require.NoError(t, err)

	enriched, err := hook.Simulate(context.Background(), record.Payload{"id": "a1"}, simulation.OperationUpdate)
	require.NoError(t, err)
	require.Nil(t, enriched)
}

func TestHTTPHook_Rejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"source":  "pricing-rules",
			"message": "price below cost",
		}))
	}))
	defer srv.Close()

	hook, err := hooks.NewHTTPHook(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = hook.Simulate(context.Background(), record.Payload{"id": "a1"}, simulation.OperationCreate)

	var simErr *simulation.Error
	require.ErrorAs(t, err, &simErr)
	require.Equal(t, "pricing-rules", simErr.Source)
	require.Equal(t, "price below cost", simErr.Message)
}

func TestHTTPHook_ServerErrorIsPlatformFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook, err := hooks.NewHTTPHook(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = hook.Simulate(context.Background(), record.Payload{"id": "a1"}, simulation.OperationCreate)
	require.Error(t, err)

	var simErr *simulation.Error
	require.False(t, errors.As(err, &simErr))
}

func TestBuildChain_RunsHooksInOrder(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(record.Payload{"stage": "one"}))
	}))
	defer first.Close()

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Record record.Payload `json:"record"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "one", req.Record["stage"])
		require.NoError(t, json.NewEncoder(w).Encode(record.Payload{"stage": "two"}))
	}))
	defer second.Close()

	chain, err := hooks.BuildChain([]string{first.URL, second.URL}, time.Second)
	require.NoError(t, err)
	require.False(t, chain.Empty())

	out, err := chain.Simulate(context.Background(), record.Payload{"id": "a1"}, simulation.OperationCreate)
	require.NoError(t, err)
	require.Equal(t, "two", out["stage"])
	require.Equal(t, "a1", out["id"])
}
