package core

import (
	"errors"
	"fmt"
	"strings"

	. "github.com/stevegt/goadapt"
)

// PromptTokenLimit is the token count at which a prompt is refused.
const PromptTokenLimit = 3072

const (
	turnStart     = "<|im_start|>"
	turnEnd       = "<|im_end|>"
	assistantCue  = turnStart + string(RoleAssistant) + "\n"
	promptJoinSep = "\n"
)

// ErrPromptTooLarge is matched by every PromptTooLargeError.
var ErrPromptTooLarge = errors.New("prompt too large")

// PromptTooLargeError reports a rendered prompt whose token count
// reached the limit.  The conversation must be reset; it is never
// truncated.
type PromptTooLargeError struct {
	Count int
	Limit int
}

func (e *PromptTooLargeError) Error() string {
	return Spf("token count %d reaches token limit %d -- reset the conversation", e.Count, e.Limit)
}

func (e *PromptTooLargeError) Is(target error) bool {
	return target == ErrPromptTooLarge
}

// RenderTurn returns a turn in ChatML form.  Content is not escaped:
// delimiter tokens inside content pass through verbatim.
func RenderTurn(turn Turn) string {
	return turnStart + string(turn.Role) + "\n" + turn.Content + turnEnd
}

// RenderPrompt joins the system message, the rendered turns, and the
// trailing assistant cue with newlines.
func RenderPrompt(sysmsg string, turns []Turn) string {
	items := make([]string, 0, len(turns)+2)
	items = append(items, sysmsg)
	for _, turn := range turns {
		items = append(items, RenderTurn(turn))
	}
	items = append(items, assistantCue)
	return strings.Join(items, promptJoinSep)
}

// BuildPrompt renders the prompt and checks it against
// PromptTokenLimit.  If the prompt is too large it returns an empty
// string and a *PromptTooLargeError.
func BuildPrompt(sysmsg string, turns []Turn, counter TokenCounter) (prompt string, err error) {
	Assert(counter != nil, "token counter is required")
	rendered := RenderPrompt(sysmsg, turns)
	count, err := counter.TokenCount(rendered)
	if err != nil {
		return "", fmt.Errorf("counting prompt tokens: %w", err)
	}
	Debug("prompt: %d turns, %d tokens", len(turns), count)
	if count >= PromptTokenLimit {
		return "", &PromptTooLargeError{Count: count, Limit: PromptTokenLimit}
	}
	return rendered, nil
}
