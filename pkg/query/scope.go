package query

import "context"

// Scope ties fetches to the lifetime of one screen.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScope derives a cancellable scope from parent.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is passed to Load and Refetch for fetches owned by the screen.
func (s *Scope) Context() context.Context { return s.ctx }

// Close cancels the scope's in-flight fetches. It is safe to call twice.
func (s *Scope) Close() { s.cancel() }
