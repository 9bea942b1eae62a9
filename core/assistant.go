package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	. "github.com/stevegt/goadapt"

	"github.com/arnaudmiribel/arctic-metric-assistant/client"
)

const version = "0.3.0"

// CodeVersion returns the version of the assistant code.
func CodeVersion() string {
	return version
}

var DefaultGreeting = `Hey! I'm your Metric Assistant. Ask me a question and I'll show you a
related metric. You can also check everything I know with the prompt command.`

var sysmsgTmpl = `
You are a metric assistant. Building upon the following metrics
metadata, you are asked to retrieve the most relevant 1 or 2 metrics
that best answer the questions you get asked from the user.

You should answer the user by quoting the explicit metric name, enclosed with
backticks so it's easily parsable later, and also don't forget to
explain verbally why the question matches this metric, most likely
looking at the description.

Metrics metadata:
%s
`

// SysMsg returns the instruction prompt for the given catalog.  The
// metadata is a name-to-description JSON object with sorted keys, so
// the result is stable.
func SysMsg(catalog *Catalog) (sysmsg string, err error) {
	defer Return(&err)
	buf, err := json.MarshalIndent(catalog.Descriptions(), "", "  ")
	Ck(err)
	sysmsg = Spf(sysmsgTmpl, buf)
	return
}

// Reply is a completed assistant answer.
type Reply struct {
	Text string
	// Names are every delimited substring found in Text.
	Names []string
	// Metrics are the catalog entries matching Names, in catalog order.
	Metrics []*Metric
}

// Assistant runs one conversation against a metric catalog.
type Assistant struct {
	Sysmsg   string
	Catalog  *Catalog
	Counter  TokenCounter
	Streamer client.Streamer
	Options  client.Options
	log      *Log
}

// NewAssistant creates an assistant whose conversation starts with
// DefaultGreeting.
func NewAssistant(catalog *Catalog, counter TokenCounter, streamer client.Streamer, opts client.Options) (a *Assistant, err error) {
	defer Return(&err)
	Assert(catalog != nil, "catalog is required")
	Assert(counter != nil, "token counter is required")
	Assert(streamer != nil, "streamer is required")
	sysmsg, err := SysMsg(catalog)
	Ck(err)
	a = &Assistant{
		Sysmsg:   sysmsg,
		Catalog:  catalog,
		Counter:  counter,
		Streamer: streamer,
		Options:  opts,
		log:      NewLog(DefaultGreeting),
	}
	return
}

// SessionID returns the id of the current conversation log.
func (a *Assistant) SessionID() string {
	return a.log.ID
}

// History returns the conversation so far.
func (a *Assistant) History() []Turn {
	return a.log.Turns()
}

// Reset clears the conversation back to the greeting.
func (a *Assistant) Reset() {
	Debug("session %s: reset", a.log.ID)
	a.log.Reset()
}

// Prompt renders the prompt for the current history without checking
// the token budget.
func (a *Assistant) Prompt() string {
	return RenderPrompt(a.Sysmsg, a.log.Turns())
}

// Ask appends the question to the conversation, sends the prompt to
// the model, and writes each chunk to w as it arrives.  When the
// stream is exhausted the reply is scanned for metric names and
// appended to the conversation.
//
// If the prompt is too large Ask returns an error matching
// ErrPromptTooLarge without calling the model; the question stays in
// the log until Reset.  Model errors are returned without retry.
func (a *Assistant) Ask(ctx context.Context, question string, w io.Writer) (reply *Reply, err error) {
	err = a.log.Append(Turn{Role: RoleUser, Content: question})
	if err != nil {
		return
	}

	prompt, err := BuildPrompt(a.Sysmsg, a.log.Turns(), a.Counter)
	if err != nil {
		return
	}

	Debug("session %s: streaming from %s", a.log.ID, a.Options.Model)
	stream, err := a.Streamer.Stream(ctx, prompt, a.Options)
	if err != nil {
		return nil, fmt.Errorf("calling model %s: %w", a.Options.Model, err)
	}
	defer stream.Close()

	var buf strings.Builder
	for {
		var chunk string
		chunk, err = stream.Recv()
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if err != nil {
			return nil, fmt.Errorf("streaming from model %s: %w", a.Options.Model, err)
		}
		buf.WriteString(chunk)
		if w != nil {
			_, err = io.WriteString(w, chunk)
			if err != nil {
				return
			}
		}
	}

	reply = &Reply{Text: buf.String()}
	reply.Names = ExtractDelimitedNames(reply.Text)
	reply.Metrics = a.Catalog.Match(reply.Names)
	Debug("session %s: names %v matched %d metrics", a.log.ID, reply.Names, len(reply.Metrics))

	var matched []string
	for _, m := range reply.Metrics {
		matched = append(matched, m.Name)
	}
	err = a.log.Append(Turn{Role: RoleAssistant, Content: reply.Text, Metrics: matched})
	return
}
