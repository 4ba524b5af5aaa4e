package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidAddress  = errors.New("invalid ethereum address")
	ErrLockHeld        = errors.New("lock already held")
	ErrRunwayUndefined = errors.New("runway undefined: zero effective interest rate")
	ErrSuperseded      = errors.New("refresh superseded by a newer one")
)

// ChainQueryError reports a failed read against the chain. Query names the
// contract function and Arg carries its argument, if any, so a caller can
// retry exactly the call that failed.
type ChainQueryError struct {
	Query string
	Arg   string
	Err   error
}

func (e *ChainQueryError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("chain query %s: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("chain query %s(%s): %v", e.Query, e.Arg, e.Err)
}

func (e *ChainQueryError) Unwrap() error { return e.Err }

// AggregationError is returned when any read inside a staking aggregation
// fails. HasIndex is false when the failure happened while listing the
// address's positions rather than reading one of them. Address is empty when
// the final claimable-reward conversion failed.
type AggregationError struct {
	Address  string
	Index    uint64
	HasIndex bool
	Err      error
}

func (e *AggregationError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("aggregate stake: %v", e.Err)
	}
	if e.HasIndex {
		return fmt.Sprintf("aggregate stake for %s at position %d: %v", e.Address, e.Index, e.Err)
	}
	return fmt.Sprintf("aggregate stake for %s: %v", e.Address, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }
