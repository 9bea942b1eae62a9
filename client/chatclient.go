package client

import "context"

// Options carries the sampling parameters passed to the hosted model.
type Options struct {
	// Model is the upstream model name.
	Model string
	// Temperature may exceed 1 on some providers.
	Temperature float32
	// TopP is the nucleus-sampling probability mass, in [0,1].
	TopP float32
	// MaxTokens caps the completion length; zero means the provider default.
	MaxTokens int
}

// DefaultOptions returns the sampling parameters the assistant has always
// used with Arctic.
func DefaultOptions(model string) Options {
	return Options{
		Model:       model,
		Temperature: 0.3,
		TopP:        0.9,
	}
}

// Streamer defines the interface for streaming completions.
// Implementations of Streamer (such as the openai and mock clients)
// take a fully rendered prompt and return a lazily produced sequence of
// text chunks.
type Streamer interface {
	Stream(ctx context.Context, prompt string, opts Options) (Stream, error)
}

// Stream is an incrementally produced completion.  Recv returns io.EOF
// once the completion is exhausted.
type Stream interface {
	Recv() (string, error)
	Close() error
}
