package milestone

import (
	"errors"
	"fmt"

	"github.com/Phillezi/ledgerwatch/pkg/ledger"
)

var (
	// ErrInvalidState matches every *StateError.
	ErrInvalidState = errors.New("invalid milestone state")
	// ErrUpstream matches every *UpstreamError.
	ErrUpstream = errors.New("upstream source failed")
	// ErrHandler matches every *HandlerError.
	ErrHandler = errors.New("record handler failed")
)

// StateError reports a record that is not allowed in the current phase of a
// milestone batch, or a source that ended inside a batch.
type StateError struct {
	Phase     string
	Milestone uint32
	Got       ledger.Kind
	Reason    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s in %s of milestone %d (got %s record)", ErrInvalidState, e.Reason, e.Phase, e.Milestone, e.Got)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// UpstreamError wraps an error returned by the source itself.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s: %v", ErrUpstream, e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// HandlerError wraps an error returned by a record handler.
type HandlerError struct {
	Kind     ledger.Kind
	OutputID ledger.OutputID
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %s output %s: %v", ErrHandler, e.Kind, e.OutputID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) Is(target error) bool { return target == ErrHandler }
