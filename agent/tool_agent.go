package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/model"
	"github.com/hupe1980/payroute/tool"
)

// DefaultInstruction is the system prompt of the purchase sub-agent.
const DefaultInstruction = "너는 제공된 MCP 툴 중 적절한 것을 선택해 호출한다. 필요 없으면 직접 답하라."

// FallbackAnswer is returned when a limit is hit before anything useful was produced.
const FallbackAnswer = "요청을 완료하지 못했습니다."

var (
	// ErrIterationLimit is logged when the model keeps requesting tools past MaxIterations.
	ErrIterationLimit = errors.New("sub-agent iteration limit reached")

	// ErrParseErrorLimit is logged when too many malformed tool calls were made.
	ErrParseErrorLimit = errors.New("sub-agent malformed tool call limit reached")
)

// ToolAgentOptions configures a ToolAgent instance.
//
// Use functional options with NewToolAgent to override defaults.
type ToolAgentOptions struct {
	Instruction    string        // system prompt
	MaxIterations  int           // model turns per run, 0 => unlimited
	MaxParseErrors int           // malformed tool calls per run, 0 => unlimited
	ToolTimeout    time.Duration // per tool call
	MaxParallel    int           // concurrent tool calls per turn
	Executor       Executor
	Logger         logging.Logger
}

// ToolAgent lets a language model pick and call tools until it produces a
// final answer. It holds no per-run state and is safe for concurrent use.
type ToolAgent struct {
	llm  model.Model
	opts ToolAgentOptions
}

// NewToolAgent creates a new tool-calling agent with sensible defaults.
//
// The agent is initialized with:
//   - DefaultInstruction as system prompt
//   - 5 model turns and 3 malformed tool calls per run
//   - 30-second timeout for tool calls
//   - the parallel executor
func NewToolAgent(llm model.Model, optFns ...func(o *ToolAgentOptions)) *ToolAgent {
	opts := ToolAgentOptions{
		Instruction:    DefaultInstruction,
		MaxIterations:  5,
		MaxParseErrors: 3,
		ToolTimeout:    30 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Executor == nil {
		opts.Executor = NewParallelExecutor(ExecutorConfig{
			MaxParallel: opts.MaxParallel,
			Timeout:     opts.ToolTimeout,
			Logger:      opts.Logger,
		})
	}

	return &ToolAgent{llm: llm, opts: opts}
}

// Model returns the language model driving the agent.
func (a *ToolAgent) Model() model.Model { return a.llm }

type runState struct {
	turns        int
	lastText     string
	lastToolText string
	parseErrors  int
}

// nextTurn spends one model turn of a budget of max (0 => unlimited) and
// reports whether it was available.
func (s *runState) nextTurn(max int) bool {
	if max > 0 && s.turns >= max {
		return false
	}
	s.turns++
	return true
}

// bestEffort picks the most useful answer produced so far.
func (s *runState) bestEffort() string {
	switch {
	case s.lastText != "":
		return s.lastText
	case s.lastToolText != "":
		return s.lastToolText
	default:
		return FallbackAnswer
	}
}

// Run answers input, calling tools as the model requests. Tool failures and
// malformed calls are fed back to the model; only model errors are returned.
func (a *ToolAgent) Run(ctx context.Context, input string, tools []tool.Tool) (string, error) {
	registry := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}

	req := model.Request{
		Instructions: a.opts.Instruction,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, input)},
		Tools:        Definitions(tools),
	}

	state := &runState{}
	name := a.llm.Info().Name

	a.opts.Logger.Debug("agent.run.start", "model", name, "tools", len(tools))

	for turn := 0; ; turn++ {
		if err := ctx.Err(); err != nil {
			return "", core.WrapTimeout(err)
		}

		if !state.nextTurn(a.opts.MaxIterations) {
			a.opts.Logger.Warn("agent.run.limit", "error", ErrIterationLimit.Error(), "turns", state.turns)
			return state.bestEffort(), nil
		}

		start := time.Now()
		resp, err := a.llm.Generate(ctx, req)
		if err != nil {
			err = core.WrapTimeout(err)
			logging.LogLLMCall(a.opts.Logger, name, time.Since(start), err)
			return "", fmt.Errorf("sub-agent model call: %w", err)
		}
		logging.LogLLMCall(a.opts.Logger, name, time.Since(start), nil)

		text := strings.TrimSpace(resp.Text())
		if text != "" {
			state.lastText = text
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			a.opts.Logger.Debug("agent.run.complete", "turns", turn+1)
			if text == "" {
				return state.lastToolText, nil
			}
			return text, nil
		}

		calls = withCallIDs(calls, turn)
		req.Contents = append(req.Contents, assistantContent(text, calls))

		outcomes := a.opts.Executor.Execute(ctx, registry, calls)

		parts := make([]core.Part, 0, len(outcomes))
		for _, o := range outcomes {
			if o.Malformed {
				state.parseErrors++
			}
			if o.Err == nil && o.Result != "" {
				state.lastToolText = o.Result
			}
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: o.Response()})
		}
		req.Contents = append(req.Contents, core.Content{Role: core.RoleTool, Parts: parts})

		if a.opts.MaxParseErrors > 0 && state.parseErrors >= a.opts.MaxParseErrors {
			a.opts.Logger.Warn("agent.run.limit", "error", ErrParseErrorLimit.Error(), "malformed", state.parseErrors)
			return state.bestEffort(), nil
		}
	}
}

// Definitions converts tools into model tool definitions.
func Definitions(tools []tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// withCallIDs fills in missing call IDs so responses can be matched.
func withCallIDs(calls []core.FunctionCall, turn int) []core.FunctionCall {
	out := make([]core.FunctionCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d_%d", turn, i)
		}
		out[i] = c
	}
	return out
}

func assistantContent(text string, calls []core.FunctionCall) core.Content {
	parts := make([]core.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return core.Content{Role: core.RoleAssistant, Parts: parts}
}
