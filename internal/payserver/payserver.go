// Package payserver implements the reference "pay-server" MCP tool provider
// used by the purchase flow. It offers pay_amount and the older
// command-string based pay tool.
package payserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/payroute/logging"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

const (
	// Name is the MCP server name announced during initialize.
	Name = "pay-server"
	// Version is the MCP server version announced during initialize.
	Version = "0.1.0"

	// ToolPayAmount takes an integer amount in won.
	ToolPayAmount = "pay_amount"
	// ToolPay takes a free-form "돈 <n> 지불해" command.
	ToolPay = "pay"

	timestampLayout = "2006-01-02 15:04:05"
)

// Fixed replies.
const (
	MsgNegativeAmount = "❌ 금액은 0 이상이어야 합니다."
	MsgBadCommand     = "❌ 명령이 올바르지 않습니다. 예: 돈 10000 지불해"
)

var commandPattern = regexp.MustCompile(`돈\s*(\d+)\s*지불해`)

var payAmountSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "amount": {"type": "integer", "description": "지불 금액(원). 0 이상 정수. 예: 12345"}
  },
  "required": ["amount"]
}`)

// Options configures the pay server.
type Options struct {
	// Now returns the payment timestamp. Defaults to time.Now.
	Now func() time.Time
	// Legacy also registers the command-string pay tool.
	Legacy bool
	Logger logging.Logger
}

type payAmountArgs struct {
	Amount *int `mapstructure:"amount"`
}

type payArgs struct {
	Command string `mapstructure:"command"`
}

type handler struct {
	now    func() time.Time
	logger logging.Logger
}

// New builds the MCP server with its tools registered.
func New(optFns ...func(o *Options)) *server.MCPServer {
	opts := Options{
		Now:    time.Now,
		Legacy: true,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{now: opts.Now, logger: logging.OrNoOp(opts.Logger)}

	s := server.NewMCPServer(Name, Version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewToolWithRawSchema(
		ToolPayAmount,
		"정수 금액(원)을 입력받아 지불 처리 후 확인 메시지를 반환합니다.",
		payAmountSchema,
	), h.payAmount)

	if opts.Legacy {
		s.AddTool(mcp.NewTool(ToolPay,
			mcp.WithDescription("돈 OO 지불해 명령을 받아, OO 금액만큼 지불했다고 응답합니다."),
			mcp.WithString("command", mcp.Required(), mcp.Description("예: 돈 10000 지불해")),
		), h.pay)
	}

	return s
}

func (h *handler) payAmount(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args payAmountArgs
	if err := decode(req.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Amount == nil {
		return mcp.NewToolResultError("invalid arguments: amount is required"), nil
	}

	amount := *args.Amount
	if amount < 0 {
		return mcp.NewToolResultText(MsgNegativeAmount), nil
	}

	h.logger.Info("pay.completed", "tool", ToolPayAmount, "amount", amount)

	return mcp.NewToolResultText(Receipt(amount, h.now())), nil
}

func (h *handler) pay(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args payArgs
	if err := decode(req.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	amount, ok := ParseCommand(args.Command)
	if !ok {
		return mcp.NewToolResultText(MsgBadCommand), nil
	}

	h.logger.Info("pay.completed", "tool", ToolPay, "amount", amount)

	return mcp.NewToolResultText(Receipt(amount, h.now())), nil
}

func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: strictInt,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// strictInt admits whole numbers and numeric strings for integer fields.
// mapstructure would otherwise truncate fractional floats.
func strictInt(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() == reflect.Ptr {
		to = to.Elem()
	}
	if to.Kind() != reflect.Int {
		return data, nil
	}

	switch v := data.(type) {
	case float64:
		if math.Trunc(v) != v || math.Abs(v) > 1<<53 {
			return nil, fmt.Errorf("%v is not a whole number of won", v)
		}
		return int(v), nil
	case float32:
		return strictInt(nil, to, float64(v))
	case bool:
		return nil, fmt.Errorf("expected an integer, got %t", v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", v)
		}
		return n, nil
	default:
		return data, nil
	}
}

// ParseCommand extracts the amount from a "돈 <n> 지불해" command.
func ParseCommand(command string) (int, bool) {
	m := commandPattern.FindStringSubmatch(command)
	if m == nil {
		return 0, false
	}

	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return amount, true
}

// Receipt renders the payment confirmation text.
func Receipt(amount int, at time.Time) string {
	return fmt.Sprintf("✅ 지불 완료!\n금액: %s원\n시각: %s", FormatAmount(amount), at.Format(timestampLayout))
}

// FormatAmount renders n with comma thousands separators.
func FormatAmount(n int) string {
	digits := strconv.Itoa(n)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}
