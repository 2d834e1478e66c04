// Package testutil contains scripted models, stub ports and stub registries
// used across tests to drive the flow deterministically without network
// access. They are not intended for production usage.
package testutil
