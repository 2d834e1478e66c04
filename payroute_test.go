package payroute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/payroute/capability"
	"github.com/hupe1980/payroute/config"
	"github.com/hupe1980/payroute/core"
	"github.com/hupe1980/payroute/internal/payserver"
	"github.com/hupe1980/payroute/internal/testutil"
	"github.com/hupe1980/payroute/metrics"
	"github.com/hupe1980/payroute/model"
	"github.com/hupe1980/payroute/model/provider"
	"github.com/hupe1980/payroute/purchase"
	"github.com/hupe1980/payroute/tool"
	"github.com/hupe1980/payroute/tool/mcp"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agentFunc func(ctx context.Context, input string, tools []tool.Tool) (string, error)

func (f agentFunc) Run(ctx context.Context, input string, tools []tool.Tool) (string, error) {
	return f(ctx, input, tools)
}

func newRouter(t *testing.T, port capability.Port, optFns ...func(o *Options)) *Router {
	t.Helper()

	r, err := New(append([]func(o *Options){func(o *Options) {
		o.Ports = capability.Ports{Default: port}
		o.Registry = testutil.NewStubRegistry(testutil.PayAmountDescriptor())
		o.Agent = agentFunc(func(context.Context, string, []tool.Tool) (string, error) { return "결제 완료", nil })
	}}, optFns...)...)
	require.NoError(t, err)

	return r
}

func allYes() *testutil.StubPort { return testutil.NewStubPort().Answer("ok").On("", "YES") }

func TestParseTopology(t *testing.T) {
	for _, name := range []string{"", "purchase", "purchase_flow", " Purchase_Flow "} {
		top, err := ParseTopology(name)
		require.NoError(t, err, name)
		assert.Equal(t, TopologyPurchase, top)
	}

	_, err := ParseTopology("refund")
	require.ErrorIs(t, err, core.ErrUnknownTopology)
	assert.Contains(t, err.Error(), `"refund"`)

	assert.Equal(t, []Topology{TopologyPurchase}, Topologies())
}

func TestNew_UnknownTopology(t *testing.T) {
	_, err := New(func(o *Options) { o.Topology = "checkout" })
	assert.ErrorIs(t, err, core.ErrUnknownTopology)
}

func TestNew_MissingCollaborators(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

func TestRouter_Run(t *testing.T) {
	r := newRouter(t, allYes())

	res, err := r.Run(context.Background(), "돈 12345 지불해 주세요")
	require.NoError(t, err)

	assert.Equal(t, purchase.NodeAgent, res.Terminal)
	assert.Equal(t, "결제 완료", res.Output())
	assert.Equal(t, []string{purchase.NodePoliteness, purchase.NodeClassifyPayAmount, purchase.NodeCheckTool, purchase.NodeAgent}, res.Path)
	assert.Len(t, res.RunID, 36)
	assert.True(t, res.State.IsHonorific)
	assert.Equal(t, TopologyPurchase, r.Topology())
}

func TestRouter_RunMarksContext(t *testing.T) {
	var seen string
	r := newRouter(t, allYes(), func(o *Options) {
		o.Agent = agentFunc(func(ctx context.Context, _ string, _ []tool.Tool) (string, error) {
			seen, _ = core.RunID(ctx)
			return "x", nil
		})
	})

	res, err := r.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, res.RunID, seen)
}

func TestRouter_RunSyncRejectsNestedRuns(t *testing.T) {
	var inner error
	var r *Router
	r = newRouter(t, allYes(), func(o *Options) {
		o.Agent = agentFunc(func(ctx context.Context, input string, _ []tool.Tool) (string, error) {
			_, inner = r.RunSync(ctx, input)
			return "outer", nil
		})
	})

	res, err := r.RunSync(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "outer", res.Output())
	assert.ErrorIs(t, inner, core.ErrNestedInvocation)
}

func TestRouter_RunError(t *testing.T) {
	r := newRouter(t, allYes(), func(o *Options) {
		o.Agent = agentFunc(func(context.Context, string, []tool.Tool) (string, error) {
			return "", errors.New("model transport down")
		})
	})

	res, err := r.Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), res.RunID)
	assert.Contains(t, err.Error(), "model transport down")
	assert.Equal(t, core.FlowState{}, res.State)
}

func TestRouter_Invoke(t *testing.T) {
	r := newRouter(t, testutil.NewStubPort())

	ch := r.Invoke(context.Background(), "밥 먹었어?")
	res, err := Wait(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, purchase.NodePoliteWarning, res.Terminal)
	assert.Equal(t, purchase.MsgPoliteWarning, res.Output())

	_, ok := <-ch
	assert.False(t, ok, "channel is closed after the outcome")
}

func TestWait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Wait(ctx, make(chan Outcome))
	assert.ErrorIs(t, err, context.Canceled)

	closed := make(chan Outcome)
	close(closed)
	_, err = Wait(context.Background(), closed)
	assert.Error(t, err)
}

func TestRouter_ConcurrentInvocations(t *testing.T) {
	port := testutil.NewStubPort().On(purchase.PolitenessInstruction, "YES")
	r := newRouter(t, port)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := fmt.Sprintf("질문 %d 입니다", i)
			res, err := r.Run(context.Background(), input)
			assert.NoError(t, err)
			assert.Equal(t, input, res.State.Input)
			assert.Equal(t, purchase.MsgAskProduct, res.Output())
		}(i)
	}
	wg.Wait()
}

func TestRouter_Metrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	r := newRouter(t, allYes(), func(o *Options) { o.Metrics = m })

	_, err = r.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.InDelta(t, 1, promtest.ToFloat64(m.Runs.WithLabelValues(purchase.NodeAgent, "ok")), 0)
	assert.InDelta(t, 2, promtest.ToFloat64(m.ToolCalls.WithLabelValues("", tool.OpDiscover, "ok")), 0)
}

func TestRouter_Introspection(t *testing.T) {
	r := newRouter(t, allYes())

	assert.Contains(t, r.Mermaid(), "flowchart TD")
	assert.Equal(t, purchase.NodePoliteness, r.Graph().Entry())

	descs, err := r.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "pay_amount", descs[0].Name)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.LLM = provider.Config{Provider: provider.Mock}

	classifier := testutil.NewScriptedModel().Repeat(testutil.NewResponseBuilder().Text("YES").Build())
	agentLLM := testutil.NewScriptedModel(
		testutil.NewResponseBuilder().Call(payserver.ToolPayAmount, `{"amount": 12345}`).Build(),
		testutil.NewResponseBuilder().Text("12,345원을 결제했습니다.").Build(),
	)

	var nodes []string
	srv := payserver.New(func(o *payserver.Options) {
		o.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	})

	r, err := NewFromConfig(cfg, func(o *FactoryOptions) {
		o.NewModel = func(node string, c provider.Config) (model.Model, error) {
			nodes = append(nodes, node)
			assert.Equal(t, provider.Mock, c.Provider)
			if node == purchase.NodeAgent {
				return agentLLM, nil
			}
			return classifier, nil
		}
		o.MCPProviders = []mcp.Provider{mcp.InProcessProvider("pay", srv)}
	})
	require.NoError(t, err)
	assert.Equal(t, purchase.LLMNodes, nodes)

	res, err := r.Run(context.Background(), "돈 12345 지불해")
	require.NoError(t, err)
	assert.Equal(t, purchase.NodeAgent, res.Terminal)
	assert.Equal(t, "12,345원을 결제했습니다.", res.Output())
	assert.Equal(t, 3, classifier.Calls())
	assert.Equal(t, 2, agentLLM.Calls())
}

func TestNewFromConfig_MockProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM = provider.Config{Provider: provider.Mock}

	r, err := NewFromConfig(cfg)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), "안녕")
	require.NoError(t, err)
	assert.Equal(t, purchase.NodePoliteWarning, res.Terminal)
}

func TestNewFromConfig_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Topology = "refund"
	_, err := NewFromConfig(cfg)
	assert.ErrorIs(t, err, core.ErrUnknownTopology)

	cfg = config.Default()
	cfg.LLM = provider.Config{Provider: provider.Mock}
	cfg.Nodes = map[string]config.NodeConfig{purchase.NodeCheckTool: {Provider: "gemini"}}
	_, err = NewFromConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node check_tool")
}

func TestNewFromConfig_KeepsExplicitPorts(t *testing.T) {
	cfg := config.Default()
	cfg.LLM = provider.Config{Provider: provider.Mock}

	ports := capability.Ports{}
	ports.Set(purchase.NodePoliteness, allYes())

	r, err := NewFromConfig(cfg, func(o *FactoryOptions) { o.Ports = ports })
	require.NoError(t, err)
	assert.Len(t, ports.Nodes, 1, "caller's map is not modified")

	res, err := r.Run(context.Background(), "안녕하세요")
	require.NoError(t, err)
	assert.True(t, res.State.IsHonorific)
	assert.Equal(t, purchase.NodeAskProduct, res.Terminal)
}

func TestNewFromConfig_SkipsModelsOfOverriddenNodes(t *testing.T) {
	cfg := config.Default()
	cfg.LLM = provider.Config{Provider: provider.Mock}
	cfg.Nodes = map[string]config.NodeConfig{
		purchase.NodeCheckTool: {Provider: "gemini"},
		purchase.NodeAgent:     {Provider: "gemini"},
	}

	var built []string
	newModel := func(node string, c provider.Config) (model.Model, error) {
		built = append(built, node)
		return provider.New(c)
	}

	ports := capability.Ports{}
	ports.Set(purchase.NodeCheckTool, allYes())
	ports.Set(purchase.NodeAgent, allYes())

	_, err := NewFromConfig(cfg, func(o *FactoryOptions) {
		o.Ports = ports
		o.NewModel = newModel
		o.Agent = agentFunc(func(context.Context, string, []tool.Tool) (string, error) { return "ok", nil })
	})
	require.NoError(t, err)
	assert.Equal(t, []string{purchase.NodePoliteness, purchase.NodeClassifyPayAmount}, built)

	// Without an explicit sub-agent the agent model is still required.
	built = nil
	_, err = NewFromConfig(cfg, func(o *FactoryOptions) {
		o.Ports = ports
		o.NewModel = newModel
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node agent")
	assert.Equal(t, []string{purchase.NodePoliteness, purchase.NodeClassifyPayAmount, purchase.NodeAgent}, built)
}
