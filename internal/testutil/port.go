package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/payroute/capability"
)

// StubPort answers classifications from fixed replies keyed by an
// instruction substring. Unmatched instructions use Default. Replies go
// through capability.ParseYesNo so malformed replies behave like a real port.
type StubPort struct {
	mu       sync.Mutex
	replies  []keyedReply
	errs     []keyedErr
	answer   string
	answerFn func(input string) (string, error)
	inputs   []string
	Default  string
}

type keyedReply struct{ key, reply string }

type keyedErr struct {
	key string
	err error
}

var _ capability.Port = (*StubPort)(nil)

// NewStubPort creates a port answering "NO" unless told otherwise.
func NewStubPort() *StubPort { return &StubPort{Default: "NO"} }

// On replies with reply when the instruction contains key (chainable).
func (p *StubPort) On(key, reply string) *StubPort {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, keyedReply{key: key, reply: reply})
	return p
}

// FailOn returns err when the instruction contains key (chainable).
func (p *StubPort) FailOn(key string, err error) *StubPort {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, keyedErr{key: key, err: err})
	return p
}

// Answer sets the Generate reply (chainable).
func (p *StubPort) Answer(text string) *StubPort {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answer = text
	return p
}

// AnswerFunc sets a dynamic Generate reply (chainable).
func (p *StubPort) AnswerFunc(fn func(input string) (string, error)) *StubPort {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answerFn = fn
	return p
}

// ClassifyYesNo implements capability.Port.
func (p *StubPort) ClassifyYesNo(ctx context.Context, instruction, input string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.inputs = append(p.inputs, input)

	for _, e := range p.errs {
		if strings.Contains(instruction, e.key) {
			return false, e.err
		}
	}

	for _, r := range p.replies {
		if strings.Contains(instruction, r.key) {
			return capability.ParseYesNo(r.reply), nil
		}
	}

	return capability.ParseYesNo(p.Default), nil
}

// Generate implements capability.Port.
func (p *StubPort) Generate(ctx context.Context, input string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	fn, answer := p.answerFn, p.answer
	p.mu.Unlock()

	if fn != nil {
		return fn(input)
	}
	return answer, nil
}

// Inputs returns the classification inputs seen so far.
func (p *StubPort) Inputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inputs...)
}
