package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/payroute/core"
)

// ErrNodeRevisited is returned when a run would execute a node twice.
var ErrNodeRevisited = errors.New("node revisited")

// BuildError lists every problem found while compiling a graph. It matches
// core.ErrUnknownGraphElement.
type BuildError struct {
	Problems []string
}

func (e *BuildError) Error() string {
	if len(e.Problems) == 1 {
		return "graph: " + e.Problems[0]
	}
	return fmt.Sprintf("graph: %d problems:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// Is matches core.ErrUnknownGraphElement.
func (e *BuildError) Is(target error) bool { return target == core.ErrUnknownGraphElement }

// NodeError reports the node that aborted a run.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("graph: node %q: %v", e.Node, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NodeError) Unwrap() error { return e.Err }
