// Package agent contains the tool-calling sub-agent that answers purchase
// requests once the flow decided a tool is available.
//
// A ToolAgent drives a model.Model in a loop: every turn the model sees the
// conversation plus the tool definitions, requested calls are executed
// through an Executor (bounded parallelism, per-call timeout) and their
// results are fed back until the model answers in plain text.
//
// Failures never abort a purchase run on their own:
//   - a failed tool call is reported to the model as an error result
//   - hitting MaxIterations or MaxParseErrors returns the last answer, or
//     FallbackAnswer when there is none
//   - model errors are returned to the caller
package agent
