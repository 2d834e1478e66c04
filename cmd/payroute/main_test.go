package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/payroute"
	"github.com/hupe1980/payroute/capability"
	"github.com/hupe1980/payroute/config"
	"github.com/hupe1980/payroute/internal/testutil"
	"github.com/hupe1980/payroute/purchase"
	"github.com/hupe1980/payroute/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agentFunc func(ctx context.Context, input string, tools []tool.Tool) (string, error)

func (f agentFunc) Run(ctx context.Context, input string, tools []tool.Tool) (string, error) {
	return f(ctx, input, tools)
}

type testApp struct {
	*app
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestApp(t *testing.T, port capability.Port, stdin string) *testApp {
	t.Helper()
	t.Setenv("PAYROUTE_CONFIG", "")

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	a := &app{
		newRouter: func(_ *config.Config, opts payroute.Options) (*payroute.Router, error) {
			opts.Ports = capability.Ports{Default: port}
			opts.Registry = testutil.NewStubRegistry(testutil.PayAmountDescriptor())
			opts.Agent = agentFunc(func(_ context.Context, input string, _ []tool.Tool) (string, error) {
				return "결제 완료: " + input, nil
			})
			return payroute.New(func(o *payroute.Options) { *o = opts })
		},
		stdin:  strings.NewReader(stdin),
		stdout: out,
		stderr: errOut,
	}

	return &testApp{app: a, out: out, err: errOut}
}

func (a *testApp) execute(args ...string) error {
	cmd := newRootCmd(a.app)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func allYes() *testutil.StubPort { return testutil.NewStubPort().On("", "YES") }

func TestRunCommand(t *testing.T) {
	a := newTestApp(t, allYes(), "")

	require.NoError(t, a.execute("run", "돈", "12345", "지불해"))
	assert.Equal(t, "결제 완료: 돈 12345 지불해\n", a.out.String())
}

func TestRunCommand_PoliteWarning(t *testing.T) {
	a := newTestApp(t, testutil.NewStubPort(), "")

	require.NoError(t, a.execute("run", "돈 내놔"))
	assert.Equal(t, purchase.MsgPoliteWarning+"\n", a.out.String())
}

func TestRunCommand_JSON(t *testing.T) {
	a := newTestApp(t, allYes(), "")

	require.NoError(t, a.execute("run", "--json", "돈 10 지불해"))

	var res struct {
		Terminal string   `json:"terminal"`
		Path     []string `json:"path"`
		RunID    string   `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(a.out.Bytes(), &res))
	assert.Equal(t, purchase.NodeAgent, res.Terminal)
	assert.Equal(t, []string{purchase.NodePoliteness, purchase.NodeClassifyPayAmount, purchase.NodeCheckTool, purchase.NodeAgent}, res.Path)
	assert.NotEmpty(t, res.RunID)
}

func TestRunCommand_Errors(t *testing.T) {
	t.Run("blank utterance", func(t *testing.T) {
		a := newTestApp(t, allYes(), "")
		assert.Error(t, a.execute("run", "  "))
	})

	t.Run("missing utterance", func(t *testing.T) {
		a := newTestApp(t, allYes(), "")
		assert.Error(t, a.execute("run"))
	})

	t.Run("router construction", func(t *testing.T) {
		a := newTestApp(t, allYes(), "")
		a.newRouter = func(*config.Config, payroute.Options) (*payroute.Router, error) {
			return nil, errors.New("no model")
		}
		assert.EqualError(t, a.execute("run", "hi"), "no model")
	})

	t.Run("missing config file", func(t *testing.T) {
		a := newTestApp(t, allYes(), "")
		err := a.execute("--config", t.TempDir()+"/missing.yaml", "run", "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load config")
	})

	t.Run("invalid log level", func(t *testing.T) {
		a := newTestApp(t, allYes(), "")
		assert.Error(t, a.execute("--log-level", "loud", "run", "hi"))
	})
}

func TestGraphCommand(t *testing.T) {
	a := newTestApp(t, allYes(), "")

	require.NoError(t, a.execute("graph"))
	assert.True(t, strings.HasPrefix(a.out.String(), "flowchart TD\n"))
	assert.Contains(t, a.out.String(), purchase.NodeCheckTool)
}

func TestToolsCommand(t *testing.T) {
	a := newTestApp(t, allYes(), "")

	require.NoError(t, a.execute("tools"))
	assert.Contains(t, a.out.String(), "NAME")
	assert.Contains(t, a.out.String(), "pay_amount")
	assert.Contains(t, a.out.String(), "amount:integer")

	a.out.Reset()
	require.NoError(t, a.execute("tools", "--json"))

	var descs []tool.Descriptor
	require.NoError(t, json.Unmarshal(a.out.Bytes(), &descs))
	require.Len(t, descs, 1)
	assert.Equal(t, "pay_amount", descs[0].Name)
}

func TestReplCommand(t *testing.T) {
	a := newTestApp(t, allYes(), "돈 1 지불해\n\n/history\nquit\n돈 2 지불해\n")

	require.NoError(t, a.execute("repl", "--plain", "--session", "s-1"))

	out := a.out.String()
	assert.Contains(t, out, "session s-1")
	assert.Contains(t, out, "결제 완료: 돈 1 지불해")
	assert.Contains(t, out, "1. **돈 1 지불해**")
	assert.NotContains(t, out, "돈 2 지불해")
	assert.Empty(t, a.err.String())
}

func TestReplCommand_EmptyHistoryAndEOF(t *testing.T) {
	a := newTestApp(t, allYes(), "/history\n")

	require.NoError(t, a.execute("repl", "--plain"))
	assert.Contains(t, a.out.String(), "(no history)")
}
