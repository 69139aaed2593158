package driver_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/awsqed/cfn-plus/actions"
	"github.com/awsqed/cfn-plus/driver"
)

func actionAppendingUndoer(log *[]string, name string) actions.Action {
	return func(ledger *actions.Ledger) error {
		*log = append(*log, "do:"+name)
		ledger.AddUndoer(func() error {
			*log = append(*log, "undo:"+name)
			return nil
		})
		ledger.AddCommitter(func() error {
			*log = append(*log, "commit:"+name)
			return nil
		})
		return nil
	}
}

func failingAction(err error) actions.Action {
	return func(ledger *actions.Ledger) error { return err }
}

func TestSessionSuccessPathCommitsBeforeActionsThenRunsAfter(t *testing.T) {
	var log []string
	before := []actions.Action{actionAppendingUndoer(&log, "b1"), actionAppendingUndoer(&log, "b2")}
	after := []actions.Action{actionAppendingUndoer(&log, "a1")}

	s := driver.NewSession(before, after)
	require.NoError(t, s.DoBefore())
	require.Equal(t, []string{"do:b1", "do:b2"}, log)

	require.NoError(t, s.DoAfter())
	require.Equal(t, []string{"do:b1", "do:b2", "commit:b1", "commit:b2", "do:a1"}, log)

	require.NoError(t, s.Close(nil))
	require.Equal(t, []string{"do:b1", "do:b2", "commit:b1", "commit:b2", "do:a1", "commit:a1"}, log)
}

func TestSessionFailureDuringDoBeforeUndoesInLIFOOrder(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	before := []actions.Action{
		actionAppendingUndoer(&log, "b1"),
		actionAppendingUndoer(&log, "b2"),
		failingAction(boom),
	}

	s := driver.NewSession(before, nil)
	err := s.DoBefore()
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Close(err))
	require.Equal(t, []string{"do:b1", "do:b2", "undo:b2", "undo:b1"}, log)
}

func TestSessionAggregatesUndoFailuresWithoutMaskingOriginalError(t *testing.T) {
	boom := errors.New("boom")
	undoErr := errors.New("undo failed")

	failingUndo := func(ledger *actions.Ledger) error {
		ledger.AddUndoer(func() error { return undoErr })
		return nil
	}

	s := driver.NewSession([]actions.Action{failingUndo, failingAction(boom)}, nil)
	err := s.DoBefore()
	require.ErrorIs(t, err, boom)

	closeErr := s.Close(err)
	require.Error(t, closeErr, "an undo failure must be surfaced, not silently dropped")
	require.NotErrorIs(t, closeErr, boom, "Close's return is the undo-failure report, not the original trigger")
}

func TestSessionAggregatesCommitFailuresOnDoAfter(t *testing.T) {
	commitErr := errors.New("commit failed")
	failingCommit := func(ledger *actions.Ledger) error {
		ledger.AddCommitter(func() error { return commitErr })
		return nil
	}

	s := driver.NewSession([]actions.Action{failingCommit}, nil)
	require.NoError(t, s.DoBefore())

	err := s.DoAfter()
	require.Error(t, err, "a commit failure during DoAfter must be reported, not silently swallowed")
}
