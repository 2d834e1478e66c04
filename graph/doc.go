// Package graph implements a small, generic state machine: named nodes that
// transform a state value, connected by unconditional or boolean
// conditional edges. A Builder collects the topology and Compile validates
// it up front so that a compiled Graph never meets an unknown node at run
// time.
//
// Execution model:
//   - Run starts at the entry node and executes nodes strictly one after
//     another, each receiving the state returned by its predecessor
//   - After a node returns, its outgoing edge is evaluated over the new state
//   - A node whose edge leads to End is terminal; its state is the result
//   - Cancellation is checked between nodes; a node error aborts the run
//     and no partial state is returned
//
// The topology must be acyclic and every node reachable from the entry.
// A compiled Graph is immutable and safe for concurrent Runs.
package graph
