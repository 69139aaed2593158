// Package driver implements the transactional Result lifecycle from
// spec.md §4.5: a scoped before/after execution over a shared ledger of
// undoers and committers, with commit-on-success and LIFO-undo-on-failure
// at scope exit. It is grounded on the original tool's
// utils.Result.do_before_creation/do_after_creation/__exit__ triad.
package driver

import (
	"github.com/awsqed/cfn-plus/actions"
	"github.com/hashicorp/go-multierror"
)

// Session drives one processor Result's action lists through the
// before-provisioning / provisioner-call / after-provisioning sequence.
type Session struct {
	ledger *actions.Ledger
	before []actions.Action
	after  []actions.Action
}

// NewSession builds a Session from a processor Result's accumulated
// action lists. The caller invokes DoBefore, then the external
// provisioner, then DoAfter, then Close — mirroring the "with
// process_template(...) as result" usage the original tool documented.
func NewSession(before, after []actions.Action) *Session {
	return &Session{ledger: &actions.Ledger{}, before: before, after: after}
}

// DoBefore runs each before-creation action in order, growing the shared
// ledger's undoers and committers.
func (s *Session) DoBefore() error {
	for _, action := range s.before {
		if err := action(s.ledger); err != nil {
			return err
		}
	}
	return nil
}

// DoAfter commits the before-phase's committers — the provisioner has now
// succeeded, so superseded pre-provisioning state is safe to purge — resets
// the ledger, then runs each after-creation action in order. Commit
// failures are aggregated and returned rather than aborting the
// after-creation actions, since the provisioning step they were cleaning
// up after has already completed.
func (s *Session) DoAfter() error {
	var result error
	for _, commit := range s.ledger.Committers {
		if err := commit(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.ledger.Committers = nil
	s.ledger.Undoers = nil

	for _, action := range s.after {
		if err := action(s.ledger); err != nil {
			return err
		}
	}
	return result
}

// Close ends the session's scope. Pass the error (if any) that caused the
// caller to abandon the sequence early: nil drains any remaining
// committers; non-nil pops undoers in LIFO order and invokes them. Undo
// failures are aggregated and returned for the caller to log — they are
// deliberately never allowed to shadow the original failure that
// triggered rollback.
func (s *Session) Close(failure error) error {
	var result error
	if failure == nil {
		for _, commit := range s.ledger.Committers {
			if err := commit(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		s.ledger.Committers = nil
		return result
	}

	for i := len(s.ledger.Undoers) - 1; i >= 0; i-- {
		if err := s.ledger.Undoers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.ledger.Undoers = nil
	return result
}
