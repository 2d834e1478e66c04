// Package session stores the conversation history of shells (REPL, HTTP
// server). A history is an ordered list of turns keyed by session id; the
// flow itself stays stateless and never reads it back.
//
// InMemoryStore lives here; the Redis backend is in the redis sub-package.
// Both satisfy the contract in sessiontest.
package session
