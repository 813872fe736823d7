// Package tasks runs pipeline phases off the request path. A spawned task
// owns its inputs, runs on a detached context, and reports its terminal
// result through the returned handle — no shared mutable state crosses the
// boundary.
package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type Runner struct {
	log *logrus.Logger
	wg  sync.WaitGroup
}

func NewRunner(log *logrus.Logger) *Runner {
	return &Runner{log: log}
}

// Handle observes one spawned task.
type Handle struct {
	name string
	done chan error
}

func (h *Handle) Name() string {
	return h.name
}

// Done yields the terminal result exactly once.
func (h *Handle) Done() <-chan error {
	return h.done
}

// Wait blocks until the task finishes and returns its error.
func (h *Handle) Wait() error {
	return <-h.done
}

// Spawn schedules fn on a detached background context and returns
// immediately. A panic inside fn is converted into the task's error.
func (r *Runner) Spawn(name string, fn func(ctx context.Context) error) *Handle {
	h := &Handle{name: name, done: make(chan error, 1)}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.run(name, fn)
		if err != nil && r.log != nil {
			r.log.WithError(err).Errorf("tasks: %s failed", name)
		}
		h.done <- err
	}()
	return h
}

func (r *Runner) run(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v", name, rec)
		}
	}()
	return fn(context.Background())
}

// Wait blocks until every spawned task has finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
