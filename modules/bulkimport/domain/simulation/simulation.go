// Package simulation defines the business-rule hook chain contract: external
// validate-and-transform steps the pipeline invokes per record before commit.
package simulation

import (
	"context"
	"fmt"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
)

// Operation hints the hook what the commit phase would do with the record.
type Operation string

const (
	OperationCreate Operation = "POST"
	OperationUpdate Operation = "PUT"
)

// Error is a business-rule rejection. Source identifies the hook so callers
// can distinguish business failures from platform ones.
type Error struct {
	Source  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("hook %s rejected record: %s", e.Source, e.Message)
}

// Hook is one external simulation step. It returns enrichment fields to merge
// into the record (possibly nil), or an error rejecting it.
type Hook interface {
	Name() string
	Simulate(ctx context.Context, payload record.Payload, op Operation) (record.Payload, error)
}

// Chain runs hooks in order. The chain is atomic per record: the first
// rejection wins and enrichment from earlier hooks flows into later ones.
type Chain struct {
	hooks []Hook
}

func NewChain(hooks ...Hook) *Chain {
	return &Chain{hooks: hooks}
}

func (c *Chain) Empty() bool {
	return c == nil || len(c.hooks) == 0
}

func (c *Chain) Simulate(ctx context.Context, payload record.Payload, op Operation) (record.Payload, error) {
	if c.Empty() {
		return payload, nil
	}
	current := payload.Clone()
	for _, hook := range c.hooks {
		enriched, err := hook.Simulate(ctx, current, op)
		if err != nil {
			return nil, err
		}
		if enriched != nil {
			current = record.Merge(current, enriched)
		}
	}
	return current, nil
}

// AccessFilter decides per record whether the initiating caller may import it.
type AccessFilter interface {
	Allows(ctx context.Context, payload record.Payload) bool
}

type AccessFilterFunc func(ctx context.Context, payload record.Payload) bool

func (f AccessFilterFunc) Allows(ctx context.Context, payload record.Payload) bool {
	return f(ctx, payload)
}
