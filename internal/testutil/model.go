package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/payroute/model"
)

// ErrScriptExhausted is returned once a ScriptedModel ran out of replies.
var ErrScriptExhausted = errors.New("scripted model: no more replies")

type step struct {
	resp *model.Response
	err  error
}

// ScriptedModel replays a fixed sequence of replies and records every request.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []step
	requests []model.Request
	repeat   *model.Response
}

var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates a model replying with resps in order.
func NewScriptedModel(resps ...*model.Response) *ScriptedModel {
	m := &ScriptedModel{}
	for _, r := range resps {
		m.steps = append(m.steps, step{resp: r})
	}
	return m
}

// Reply appends a reply (chainable).
func (m *ScriptedModel) Reply(resp *model.Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{resp: resp})
	return m
}

// Fail appends a failing step (chainable).
func (m *ScriptedModel) Fail(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{err: err})
	return m
}

// Repeat makes resp the reply once the script is exhausted (chainable).
func (m *ScriptedModel) Repeat(resp *model.Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = resp
	return m
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.steps) == 0 {
		if m.repeat != nil {
			return m.repeat, nil
		}
		return nil, ErrScriptExhausted
	}

	s := m.steps[0]
	m.steps = m.steps[1:]

	return s.resp, s.err
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Calls returns how many times Generate was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
