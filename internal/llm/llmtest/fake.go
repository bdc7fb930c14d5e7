// Package llmtest provides scripted llm.Client and llm.Embedder fakes.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/ticket-router/internal/llm"
)

// Reply is one scripted completion result.
type Reply struct {
	Content string
	Err     error
}

// Client replays scripted replies in order and records every request.
// Once the script is exhausted the last reply repeats.
type Client struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []llm.Request
	// Respond, when set, overrides the script.
	Respond func(req llm.Request) (string, error)
}

func NewClient(replies ...Reply) *Client {
	return &Client{replies: replies}
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Respond != nil {
		return c.Respond(req)
	}
	if len(c.replies) == 0 {
		return "", errors.New("llmtest: no scripted reply")
	}
	idx := len(c.Requests) - 1
	if idx >= len(c.replies) {
		idx = len(c.replies) - 1
	}
	r := c.replies[idx]
	return r.Content, r.Err
}

// Calls reports how many completions were requested.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Embedder returns a fixed vector per text, or Err.
type Embedder struct {
	mu     sync.Mutex
	Vector []float32
	Err    error
	Inputs []string
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Inputs = append(e.Inputs, texts...)
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := e.Vector
	if vec == nil {
		vec = []float32{1, 0, 0}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), vec...)
	}
	return out, nil
}

// Calls reports how many texts were embedded.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Inputs)
}
