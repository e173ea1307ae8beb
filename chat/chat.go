// Package chat defines the conversation request sent to a chat backend and the
// system prompts that put the backend in character.
package chat

import (
	"context"
	"iter"
	"strings"

	"github.com/happycapy/rehearsal/scenario"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one reply request: the full transcript so far plus the scenario it
// plays out in. Autonomous requests ask the group to carry on without new input.
type Request struct {
	Messages   []Message
	Scenario   *scenario.Scenario
	Theme      string
	Autonomous bool
}

func (r Request) ScenarioID() string {
	if r.Scenario == nil {
		return ""
	}
	return r.Scenario.ID
}

// Endpoint streams the text of one reply. The sequence ends after the last
// fragment or yields a single non-nil error.
type Endpoint interface {
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// Collect drains a reply stream, calling onToken for every fragment.
func Collect(seq iter.Seq2[string, error], onToken func(string)) (string, error) {
	var sb strings.Builder
	for tok, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(tok)
		if onToken != nil {
			onToken(tok)
		}
	}
	return sb.String(), nil
}
