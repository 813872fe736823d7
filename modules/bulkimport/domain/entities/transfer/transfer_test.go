package transfer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusValidating, true},
		{StatusValidating, StatusValidated, true},
		{StatusValidating, StatusError, true},
		{StatusValidated, StatusImporting, true},
		{StatusImporting, StatusCreated, true},
		{StatusImporting, StatusError, true},

		{StatusPending, StatusImporting, false},
		{StatusPending, StatusCreated, false},
		{StatusValidating, StatusImporting, false},
		{StatusValidated, StatusCreated, false},
		{StatusError, StatusValidating, false},
		{StatusCreated, StatusImporting, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTransfer_TransitionWritesCountsAndMessage(t *testing.T) {
	tr := New("file-1", WithFileName("people.xlsx"), WithUser("alice"))
	require.Equal(t, StatusPending, tr.Status())

	require.NoError(t, tr.Transition(StatusValidating, Counts{}, ""))

	counts := Counts{Valid: 3, Conflict: 2}
	require.NoError(t, tr.Transition(StatusValidated, counts, ""))
	require.Equal(t, counts, tr.Counts())

	err := tr.Transition(StatusCreated, Counts{}, "")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidTransition))
	require.Equal(t, StatusValidated, tr.Status(), "failed transition must not change state")
}

func TestTransfer_ErrorIsTerminalForPhase(t *testing.T) {
	tr := New("file-1")
	require.NoError(t, tr.Transition(StatusValidating, Counts{}, ""))
	require.NoError(t, tr.Transition(StatusError, Counts{Error: 101}, "too many errors"))
	require.True(t, tr.Terminal())
	require.Error(t, tr.Transition(StatusValidating, Counts{}, ""))
}

func TestTransfer_ResetAllowsFreshRun(t *testing.T) {
	tr := New("file-1", WithUser("alice"))
	require.NoError(t, tr.Transition(StatusValidating, Counts{}, ""))
	require.NoError(t, tr.Transition(StatusError, Counts{}, "parse failure"))

	tr.Reset("people-v2.xlsx", "bob")
	require.Equal(t, StatusPending, tr.Status())
	require.Equal(t, Counts{}, tr.Counts())
	require.Empty(t, tr.Message())
	require.Equal(t, "bob", tr.User())
	require.NoError(t, tr.Transition(StatusValidating, Counts{}, ""))
}

func TestTransfer_MarkRead(t *testing.T) {
	tr := New("file-1")
	require.False(t, tr.IsRead())
	tr.MarkRead()
	require.True(t, tr.IsRead())

	// any transition flips the unread flag back on for the caller
	require.NoError(t, tr.Transition(StatusValidating, Counts{}, ""))
	require.False(t, tr.IsRead())
}
