// Package core provides the foundational domain types shared by the router,
// the graph engine and the tool layer. It defines:
//
//   - FlowState (the per-invocation value carried from node to node)
//   - Content / Part (role-based conversation segments used by models and the sub-agent)
//   - Error kinds (sentinels matched with errors.Is)
//   - Run markers stored in a context.Context
//
// The package keeps implementation concerns (transport, persistence, concrete
// models) out of scope so every other package can depend on it.
package core
