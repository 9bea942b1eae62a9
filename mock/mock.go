package mock

import (
	"context"
	"io"
	"math/rand"
	"strings"

	"github.com/arnaudmiribel/arctic-metric-assistant/client"
)

// Client is a mock LLM provider for testing.
// It implements the Streamer interface and returns pre-configured responses
// based on the model name. Tests can configure responses using SetResponse.
type Client struct {
	Responses map[string]string // model name -> response
	// Prompts records every prompt received, in order.
	Prompts []string
	// Err, if set, is returned by Stream instead of a response.
	Err error
}

// NewClient creates a new mock client.
func NewClient() *Client {
	return &Client{
		Responses: make(map[string]string),
	}
}

// SetResponse sets the response for a given model name.
func (c *Client) SetResponse(model, response string) {
	c.Responses[model] = response
}

// Stream returns the pre-configured response for opts.Model, split into
// word-sized chunks.  If no response has been configured it streams a
// default response.
func (c *Client) Stream(ctx context.Context, prompt string, opts client.Options) (client.Stream, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.Prompts = append(c.Prompts, prompt)
	response, ok := c.Responses[opts.Model]
	if !ok {
		response = "default mock response"
	}
	return NewStream(ctx, response), nil
}

// Stream replays a fixed text as a sequence of chunks.
type Stream struct {
	ctx    context.Context
	chunks []string
}

// NewStream splits txt after each space so the chunks concatenate back
// to txt exactly.
func NewStream(ctx context.Context, txt string) *Stream {
	return &Stream{ctx: ctx, chunks: strings.SplitAfter(txt, " ")}
}

// Recv returns the next chunk, io.EOF when done, or the context error
// if the context was cancelled.
func (s *Stream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	for len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		if chunk != "" {
			return chunk, nil
		}
	}
	return "", io.EOF
}

func (s *Stream) Close() error {
	s.chunks = nil
	return nil
}

// Demo answers every prompt by naming a randomly chosen metric, the
// way the hosted app behaves when its model is switched off.
type Demo struct {
	names []string
	rnd   *rand.Rand
}

// NewDemo creates a Demo that picks from names using the given seed.
func NewDemo(names []string, seed int64) *Demo {
	return &Demo{names: names, rnd: rand.New(rand.NewSource(seed))}
}

// DemoResponse returns the deactivated-model reply for the given metric name.
func DemoResponse(name string) string {
	return "Sorry, the LLM was deactivated! I'll just return a random metric: `" + name + "`. " +
		"Configure an API key to use your very own LLM!"
}

// Stream ignores the prompt and streams a demo response.  Names are
// drawn from indices 1..8, so the catalog needs at least 9 entries
// for the full range.
func (d *Demo) Stream(ctx context.Context, prompt string, opts client.Options) (client.Stream, error) {
	hi := 8
	if hi > len(d.names)-1 {
		hi = len(d.names) - 1
	}
	name := ""
	if hi >= 1 {
		name = d.names[1+d.rnd.Intn(hi)]
	} else if len(d.names) == 1 {
		name = d.names[0]
	}
	return NewStream(ctx, DemoResponse(name)), nil
}

var _ client.Streamer = (*Client)(nil)
var _ client.Streamer = (*Demo)(nil)
