// Package hooks provides the HTTP-backed implementation of the business-rule
// simulation chain. Each configured endpoint receives the candidate record and
// either enriches it or rejects it.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/modules/bulkimport/domain/simulation"
)

type hookRequest struct {
	Record    record.Payload       `json:"record"`
	Operation simulation.Operation `json:"operation"`
}

type hookRejection struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// HTTPHook posts the record to a simulation endpoint. A 2xx response carries
// optional enrichment fields, 422 carries a structured rejection, anything
// else is a platform failure.
type HTTPHook struct {
	name   string
	url    string
	client *http.Client
}

func NewHTTPHook(endpoint string, timeout time.Duration) (*HTTPHook, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hook endpoint %q", endpoint)
	}
	name := u.Host
	if name == "" {
		name = endpoint
	}
	return &HTTPHook{
		name:   name,
		url:    endpoint,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (h *HTTPHook) Name() string {
	return h.name
}

func (h *HTTPHook) Simulate(ctx context.Context, payload record.Payload, op simulation.Operation) (record.Payload, error) {
	body, err := json.Marshal(hookRequest{Record: payload, Operation: op})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal hook request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build hook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "hook %s unreachable", h.name)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read hook %s response", h.name)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		var enriched record.Payload
		if err := json.Unmarshal(data, &enriched); err != nil {
			return nil, errors.Wrapf(err, "hook %s returned malformed enrichment", h.name)
		}
		return enriched, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var rejection hookRejection
		if err := json.Unmarshal(data, &rejection); err != nil {
			return nil, errors.Wrapf(err, "hook %s returned malformed rejection", h.name)
		}
		source := rejection.Source
		if source == "" {
			source = h.name
		}
		return nil, &simulation.Error{Source: source, Message: rejection.Message}
	default:
		return nil, errors.Errorf("hook %s returned status %d", h.name, resp.StatusCode)
	}
}

// BuildChain wires one HTTPHook per configured endpoint, in order.
func BuildChain(endpoints []string, timeout time.Duration) (*simulation.Chain, error) {
	hooks := make([]simulation.Hook, 0, len(endpoints))
	for _, endpoint := range endpoints {
		hook, err := NewHTTPHook(endpoint, timeout)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, hook)
	}
	return simulation.NewChain(hooks...), nil
}
