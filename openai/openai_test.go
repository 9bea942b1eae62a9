package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/stevegt/goadapt"

	"github.com/arnaudmiribel/arctic-metric-assistant/client"
)

// sseServer returns a test server that streams the given chunks in the
// completions SSE format and records the last request body.
func sseServer(t *testing.T, chunks []string, got *map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Tassert(t, r.URL.Path == "/v1/completions", "unexpected path %s", r.URL.Path)
		err := json.NewDecoder(r.Body).Decode(got)
		Tassert(t, err == nil, "error decoding request: %v", err)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			buf, err := json.Marshal(map[string]any{
				"object":  "text_completion",
				"choices": []map[string]any{{"text": chunk, "index": 0}},
			})
			Tassert(t, err == nil, "error marshaling chunk: %v", err)
			fmt.Fprintf(w, "data: %s\n\n", buf)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestStream(t *testing.T) {
	var got map[string]any
	srv := sseServer(t, []string{"Go for ", "", "`Revenue`"}, &got)
	defer srv.Close()

	c := NewClient("test-key", srv.URL+"/v1")
	opts := client.DefaultOptions("snowflake-arctic-instruct")
	stream, err := c.Stream(context.Background(), "PROMPT", opts)
	Tassert(t, err == nil, "error starting stream: %v", err)
	defer stream.Close()

	var chunks []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		Tassert(t, err == nil, "error receiving chunk: %v", err)
		chunks = append(chunks, chunk)
	}
	// empty chunks are skipped
	Tassert(t, len(chunks) == 2, "expected 2 chunks, got %q", chunks)
	Tassert(t, chunks[0]+chunks[1] == "Go for `Revenue`", "unexpected text %q", chunks)

	Tassert(t, got["prompt"] == "PROMPT", "prompt not forwarded: %v", got["prompt"])
	Tassert(t, got["model"] == "snowflake-arctic-instruct", "model not forwarded: %v", got["model"])
	Tassert(t, got["stream"] == true, "stream flag not set: %v", got["stream"])
	temp, _ := got["temperature"].(float64)
	Tassert(t, temp > 0.29 && temp < 0.31, "temperature not forwarded: %v", got["temperature"])
	topP, _ := got["top_p"].(float64)
	Tassert(t, topP > 0.89 && topP < 0.91, "top_p not forwarded: %v", got["top_p"])
}

func TestStreamProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := NewClient("bad", srv.URL+"/v1")
	_, err := c.Stream(context.Background(), "PROMPT", client.DefaultOptions("snowflake-arctic-instruct"))
	Tassert(t, err != nil, "expected provider error")
}
