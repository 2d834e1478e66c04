// Package model defines the provider‑agnostic abstractions for talking to
// language models.
//
// Core goals:
//   - One blocking Generate call per model turn
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Ollama) implement the Model interface from
// this package so higher layers (capability port, sub-agent) remain
// decoupled from vendor SDKs.
package model
