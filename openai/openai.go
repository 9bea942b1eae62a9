package openai

import (
	"context"
	"errors"
	"io"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"

	"github.com/arnaudmiribel/arctic-metric-assistant/client"
)

// Client implements the client.Streamer interface for any
// OpenAI-compatible completions endpoint.  The prompt is already
// rendered in ChatML, so we use the plain completions API rather than
// chat completions.
type Client struct {
	client *gptLib.Client
}

// NewClient creates a new Client.  If baseURL is empty the public
// OpenAI endpoint is used.
func NewClient(apiKey, baseURL string) *Client {
	config := gptLib.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{client: gptLib.NewClientWithConfig(config)}
}

// Stream sends the prompt to the completions endpoint and returns the
// streamed response.  Errors from the provider are returned as-is.
func (oc *Client) Stream(ctx context.Context, prompt string, opts client.Options) (client.Stream, error) {
	req := gptLib.CompletionRequest{
		Model:       opts.Model,
		Prompt:      prompt,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}
	Debug("completion request: model=%s temperature=%.2f top_p=%.2f prompt bytes=%d", req.Model, req.Temperature, req.TopP, len(prompt))
	stream, err := oc.client.CreateCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &completionStream{stream: stream}, nil
}

// completionStream adapts a go-openai CompletionStream to client.Stream.
type completionStream struct {
	stream *gptLib.CompletionStream
}

// Recv returns the next non-empty text chunk, or io.EOF.
func (s *completionStream) Recv() (txt string, err error) {
	for {
		var resp gptLib.CompletionResponse
		resp, err = s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		for _, choice := range resp.Choices {
			txt += choice.Text
		}
		if txt != "" {
			return txt, nil
		}
	}
}

func (s *completionStream) Close() error {
	s.stream.Close()
	return nil
}

// Assert that Client implements client.Streamer.
var _ client.Streamer = (*Client)(nil)
