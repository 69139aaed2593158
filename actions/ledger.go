// Package actions implements the transactional object-store primitives
// (upload, delete, make_dir) from spec.md §4.3: each accumulates an undoer
// and, where applicable, a committer into a shared Ledger instead of
// performing a fire-and-forget side effect.
package actions

// Compensator is a single deferred operation: an undoer reverses one
// action's effect, a committer finalises state that only becomes safe to
// reach once the caller's provisioning step has succeeded.
type Compensator func() error

// Ledger accumulates compensators in discovery order. Undoers are invoked
// LIFO by the driver; committers are invoked in the order they were
// appended.
type Ledger struct {
	Undoers    []Compensator
	Committers []Compensator
}

// AddUndoer appends an undoer.
func (l *Ledger) AddUndoer(c Compensator) {
	l.Undoers = append(l.Undoers, c)
}

// AddCommitter appends a committer.
func (l *Ledger) AddCommitter(c Compensator) {
	l.Committers = append(l.Committers, c)
}

// Action performs exactly one externally observable operation against a
// Ledger, appending compensators on success. No action leaves unobservable
// state: every effect it completes has its compensators recorded before it
// goes on, so an action that performs several effects (S3Sync) and fails
// partway leaves undoers for the effects it already made.
type Action func(ledger *Ledger) error
