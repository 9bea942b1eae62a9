package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrUnknownRole is returned when appending a turn whose role is
// neither user nor assistant.
var ErrUnknownRole = errors.New("unknown role")

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Metrics holds the names of the catalog metrics matched in an
	// assistant reply.  It is never rendered into the prompt.
	Metrics []string `json:"metrics,omitempty"`
}

// Log is the ordered, append-only conversation history of a single
// session.  Insertion order is prompt order.
type Log struct {
	// ID identifies the session in debug output.
	ID       string
	greeting string
	turns    []Turn
}

// NewLog returns a log seeded with an assistant greeting, or an empty
// log if greeting is empty.
func NewLog(greeting string) (log *Log) {
	log = &Log{
		ID:       uuid.NewString(),
		greeting: greeting,
	}
	log.Reset()
	return
}

// Append adds a turn to the end of the log.
func (log *Log) Append(turn Turn) (err error) {
	switch turn.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRole, turn.Role)
	}
	// copy so the caller cannot mutate the stored turn later
	turn.Metrics = append([]string(nil), turn.Metrics...)
	log.turns = append(log.turns, turn)
	return
}

// Reset clears the log back to its initial seeded state.
func (log *Log) Reset() {
	log.turns = nil
	if log.greeting != "" {
		log.turns = []Turn{{Role: RoleAssistant, Content: log.greeting}}
	}
}

// Turns returns a copy of the turns in chronological order.
func (log *Log) Turns() (turns []Turn) {
	turns = make([]Turn, len(log.turns))
	copy(turns, log.turns)
	return
}

// Len returns the number of turns in the log.
func (log *Log) Len() int {
	return len(log.turns)
}
