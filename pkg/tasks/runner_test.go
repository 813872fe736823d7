package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRunner_SpawnDeliversResult(t *testing.T) {
	runner := NewRunner(logrus.New())

	h := runner.Spawn("ok", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, h.Wait())

	wantErr := errors.New("boom")
	h = runner.Spawn("fails", func(ctx context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, h.Wait(), wantErr)
}

func TestRunner_SpawnReturnsImmediately(t *testing.T) {
	runner := NewRunner(logrus.New())

	release := make(chan struct{})
	start := time.Now()
	h := runner.Spawn("slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.Less(t, time.Since(start), time.Second, "Spawn must not block on the task")

	select {
	case <-h.Done():
		t.Fatal("task should still be running")
	default:
	}

	close(release)
	require.NoError(t, h.Wait())
}

func TestRunner_PanicBecomesError(t *testing.T) {
	runner := NewRunner(logrus.New())

	h := runner.Spawn("panics", func(ctx context.Context) error {
		panic("kaboom")
	})
	err := h.Wait()
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaboom")
}

func TestRunner_WaitDrainsAllTasks(t *testing.T) {
	runner := NewRunner(logrus.New())

	done := make([]bool, 3)
	for i := range done {
		i := i
		runner.Spawn("n", func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			done[i] = true
			return nil
		})
	}
	runner.Wait()
	for i, d := range done {
		require.True(t, d, "task %d should have completed", i)
	}
}
