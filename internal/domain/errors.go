package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrLockHeld      = errors.New("lock already held")
	ErrNoLiquidity   = errors.New("no liquidity on any route")
	ErrNoSignal      = errors.New("no signal")
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrSigningFailed = errors.New("signing failed")
	ErrRateLimited   = errors.New("rate limited")
)

// ErrorKind classifies failures at external boundaries.
type ErrorKind string

const (
	KindUnknown      ErrorKind = "unknown"
	KindTransient    ErrorKind = "transient"    // network, timeout, RPC unavailable
	KindOnChain      ErrorKind = "on_chain"     // revert or failed receipt
	KindMalformed    ErrorKind = "malformed"    // undecodable payload
	KindInsufficient ErrorKind = "insufficient" // balance, margin, allowance
	KindInvariant    ErrorKind = "invariant"    // unknown agent, inconsistent store
)

// Error carries an ErrorKind alongside the failing operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation name. A nil err stays nil.
func E(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNoLiquidity) {
		return KindInsufficient
	}
	return KindUnknown
}
