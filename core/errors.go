package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClassificationAmbiguous marks a yes/no reply that was neither YES nor
	// NO. It is logged and folded into false, never returned to callers.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")

	// ErrToolDiscovery is the kind of every tool listing failure.
	ErrToolDiscovery = errors.New("tool discovery failed")

	// ErrToolInvocation is the kind of every tool call failure.
	ErrToolInvocation = errors.New("tool invocation failed")

	// ErrTimeout marks a remote call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrUnknownGraphElement is returned when a graph references a node or
	// route that does not exist.
	ErrUnknownGraphElement = errors.New("unknown graph node or edge")

	// ErrNestedInvocation is returned when a blocking run is started from
	// inside an active run.
	ErrNestedInvocation = errors.New("blocking run invoked from an active run")

	// ErrUnknownTopology is returned for an unsupported topology name.
	ErrUnknownTopology = errors.New("unknown topology")
)

// WrapTimeout tags err with ErrTimeout when it was caused by a deadline. Any
// other error is returned unchanged.
func WrapTimeout(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return err
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
