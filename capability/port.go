// Package capability provides the Port abstraction the flow nodes use to ask
// a language model a yes/no question or to produce free text, independent of
// the concrete model provider.
package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/model"
)

// DefaultTimeout bounds a single model call made through a ModelPort.
const DefaultTimeout = 30 * time.Second

// Port is the language model boundary of the flow.
type Port interface {
	// ClassifyYesNo asks a yes/no question about input. Replies that are not
	// clearly YES resolve to false; errors are transport or timeout failures.
	ClassifyYesNo(ctx context.Context, instruction, input string) (bool, error)

	// Generate asks for a free-text answer to input.
	Generate(ctx context.Context, input string) (string, error)
}

// PortFunc adapts a pair of functions to Port. A nil Generate answers with an
// empty string.
type PortFunc struct {
	Classify func(ctx context.Context, instruction, input string) (bool, error)
	Answer   func(ctx context.Context, input string) (string, error)
}

// ClassifyYesNo implements Port.
func (f PortFunc) ClassifyYesNo(ctx context.Context, instruction, input string) (bool, error) {
	if f.Classify == nil {
		return false, nil
	}
	return f.Classify(ctx, instruction, input)
}

// Generate implements Port.
func (f PortFunc) Generate(ctx context.Context, input string) (string, error) {
	if f.Answer == nil {
		return "", nil
	}
	return f.Answer(ctx, input)
}

// Options configures a ModelPort.
type Options struct {
	// Timeout bounds each call. Zero disables the bound.
	Timeout time.Duration
	// Instructions is the system prompt used by Generate.
	Instructions string
	Logger       logging.Logger
}

// ModelPort implements Port over a model.Model with exactly one model call
// per operation and no retries.
type ModelPort struct {
	model model.Model
	opts  Options
}

var _ Port = (*ModelPort)(nil)

// NewModelPort creates a Port backed by m.
func NewModelPort(m model.Model, optFns ...func(o *Options)) *ModelPort {
	opts := Options{
		Timeout: DefaultTimeout,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &ModelPort{model: m, opts: opts}
}

// Model returns the underlying model.
func (p *ModelPort) Model() model.Model { return p.model }

// ClassifyYesNo implements Port.
func (p *ModelPort) ClassifyYesNo(ctx context.Context, instruction, input string) (bool, error) {
	reply, err := p.call(ctx, model.UserPrompt("", Prompt(instruction, input)))
	if err != nil {
		return false, err
	}

	yes, err := ParseYesNoStrict(reply)
	if err != nil {
		p.opts.Logger.Debug("llm.classify.ambiguous", "reply", reply, "error", err.Error())
	}

	return yes, nil
}

// Generate implements Port.
func (p *ModelPort) Generate(ctx context.Context, input string) (string, error) {
	return p.call(ctx, model.UserPrompt(p.opts.Instructions, input))
}

func (p *ModelPort) call(ctx context.Context, req model.Request) (string, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	name := p.model.Info().Name
	start := time.Now()

	resp, err := p.model.Generate(ctx, req)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		err = core.WrapTimeout(fmt.Errorf("model %s: %w", name, err))
		logging.LogLLMCall(p.opts.Logger, name, time.Since(start), err)
		return "", err
	}

	logging.LogLLMCall(p.opts.Logger, name, time.Since(start), nil)

	return resp.Text(), nil
}

// Prompt renders the labelled prompt layout shared by all classification
// nodes.
func Prompt(instruction, input string) string {
	return "[Instruction]\n" + instruction + "\n\n[User Input]\n" + input
}

// WithSection appends a labelled section to an input, as in
// "<input>\n\n[Tools]\n<body>\n".
func WithSection(input, label, body string) string {
	return input + "\n\n[" + label + "]\n" + body + "\n"
}

// ParseYesNo interprets a model reply: trimmed and upper-cased, any reply
// starting with "Y" is true and everything else is false.
func ParseYesNo(reply string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(reply)), "Y")
}

// ParseYesNoStrict behaves like ParseYesNo but also reports replies that
// are neither YES nor NO as core.ErrClassificationAmbiguous. The boolean is
// always the lenient interpretation.
func ParseYesNoStrict(reply string) (bool, error) {
	norm := strings.ToUpper(strings.TrimSpace(reply))
	yes := strings.HasPrefix(norm, "Y")

	if norm == "YES" || norm == "NO" {
		return yes, nil
	}

	return yes, fmt.Errorf("%w: %q", core.ErrClassificationAmbiguous, reply)
}
