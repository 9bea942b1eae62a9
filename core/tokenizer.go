package core

import (
	. "github.com/stevegt/goadapt"
	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter returns an approximate subword token count for a text.
type TokenCounter interface {
	TokenCount(text string) (int, error)
}

// TokenCounterFunc adapts a plain function to TokenCounter.
type TokenCounterFunc func(text string) (int, error)

func (f TokenCounterFunc) TokenCount(text string) (int, error) {
	return f(text)
}

// XXX get rid of this global
var Tokenizer tokenizer.Codec

// InitTokenizer initializes the tokenizer.  The hosted model uses a
// llama-family vocabulary; cl100k_base is close enough for budgeting.
func InitTokenizer() (err error) {
	defer Return(&err)
	if Tokenizer != nil {
		return
	}
	Tokenizer, err = tokenizer.Get(tokenizer.Cl100kBase)
	Ck(err)
	return
}

// Tiktoken counts tokens with the package tokenizer.
type Tiktoken struct{}

// NewTiktoken initializes the tokenizer if needed and returns a counter.
func NewTiktoken() (t *Tiktoken, err error) {
	defer Return(&err)
	err = InitTokenizer()
	Ck(err)
	t = &Tiktoken{}
	return
}

// TokenCount returns the number of tokens in a string.
func (t *Tiktoken) TokenCount(text string) (count int, err error) {
	defer Return(&err)
	_, tokens, err := Tokenizer.Encode(text)
	Ck(err)
	count = len(tokens)
	return
}
