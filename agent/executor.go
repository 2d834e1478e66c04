package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/tool"
)

// DegradedPrefix starts every tool failure message handed back to the model.
const DegradedPrefix = "tool call failed, answering directly: "

// Outcome is the result of executing one function call.
type Outcome struct {
	Call   core.FunctionCall
	Result string
	Err    error
	// Malformed reports that the call itself was invalid (bad JSON, unknown
	// tool, schema mismatch) rather than failing inside the tool.
	Malformed bool
}

// Response renders the outcome as the function response fed back to the model.
func (o Outcome) Response() core.FunctionResponse {
	fr := core.FunctionResponse{ID: o.Call.ID, Name: o.Call.Name, Response: o.Result}

	switch {
	case o.Err == nil:
	case o.Malformed:
		fr.Error = fmt.Sprintf("invalid tool call: %v", o.Err)
	default:
		fr.Error = DegradedPrefix + o.Err.Error()
	}

	return fr
}

// Executor executes a batch of function calls. Implementations must:
//   - Respect ctx cancellation
//   - Never panic (recover internally and report the panic as an error)
//   - Return exactly one Outcome per incoming call, in call order
type Executor interface {
	Execute(ctx context.Context, tools map[string]tool.Tool, calls []core.FunctionCall) []Outcome
}

// ExecutorConfig configures the default parallel executor.
type ExecutorConfig struct {
	MaxParallel int           // 0 or <1 => no explicit limit (len(calls))
	Timeout     time.Duration // per call, 0 disables
	Logger      logging.Logger
}

type parallelExecutor struct {
	cfg ExecutorConfig
}

// NewParallelExecutor constructs a new executor with the given config.
func NewParallelExecutor(cfg ExecutorConfig) Executor {
	cfg.Logger = logging.OrNoOp(cfg.Logger)
	return &parallelExecutor{cfg: cfg}
}

func (e *parallelExecutor) Execute(ctx context.Context, tools map[string]tool.Tool, calls []core.FunctionCall) []Outcome {
	n := len(calls)
	if n == 0 {
		return nil
	}

	out := make([]Outcome, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		out[0] = e.executeSingle(ctx, tools, calls[0])
		return out
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			out[idx] = e.executeSingle(ctx, tools, fc)
		}(i, calls[i])
	}

	wg.Wait()

	e.cfg.Logger.Debug(
		"agent.functions.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return out
}

func (e *parallelExecutor) executeSingle(ctx context.Context, tools map[string]tool.Tool, fc core.FunctionCall) (o Outcome) {
	o.Call = fc

	if err := ctx.Err(); err != nil {
		o.Err = err
		return o
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				o.Err = panicError(r)
				e.cfg.Logger.Error("agent.function.panic", "function", fc.Name, "recover", r)
			}
		}()
		o.Result, o.Malformed, o.Err = executeTool(ctx, tools, fc)
	}()

	if o.Err != nil {
		o.Err = core.WrapTimeout(o.Err)
	}

	e.cfg.Logger.Info(
		"agent.function.executed",
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", o.Err != nil,
		"malformed", o.Malformed,
	)

	return o
}

// panicError converts a recovered panic value to an error without pulling external dependencies.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup, argument decoding and execution.
func executeTool(ctx context.Context, tools map[string]tool.Tool, fc core.FunctionCall) (string, bool, error) {
	impl, ok := tools[fc.Name]
	if !ok {
		return "", true, tool.NewToolError(fc.Name, "tool not found", tool.CodeUnknownTool)
	}

	argMap := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &argMap); err != nil {
			return "", true, fmt.Errorf("failed to unmarshal args: %w", err)
		}
		if argMap == nil {
			argMap = map[string]any{}
		}
	}

	result, err := impl.Call(ctx, argMap)
	if err != nil {
		var te *tool.ToolError
		if errors.As(err, &te) && (te.Code == tool.CodeValidationError || te.Code == tool.CodeUnknownTool) {
			return "", true, err
		}
		return "", false, err
	}

	return result, false, nil
}
