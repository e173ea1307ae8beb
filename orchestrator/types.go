package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/happycapy/rehearsal/chat"
	"github.com/happycapy/rehearsal/scoring"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingReply
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting-reply"
	default:
		return "ready"
	}
}

// Turn is one transcript entry. Speaker names the persona behind an assistant
// turn when it is known.
type Turn struct {
	ID        string    `json:"id"`
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	Speaker   string    `json:"speaker,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// Transcript is append-only.
type Transcript struct {
	turns []Turn
}

func (t *Transcript) append(role chat.Role, content, speaker string) Turn {
	turn := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Speaker:   speaker,
		CreatedAt: time.Now(),
	}
	t.turns = append(t.turns, turn)
	return turn
}

func (t *Transcript) Len() int { return len(t.turns) }

func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) last(role chat.Role) (Turn, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == role {
			return t.turns[i], true
		}
	}
	return Turn{}, false
}

func (t *Transcript) LastUser() (Turn, bool)      { return t.last(chat.RoleUser) }
func (t *Transcript) LastAssistant() (Turn, bool) { return t.last(chat.RoleAssistant) }

// Messages is the transcript in the shape chat backends take.
func (t *Transcript) Messages() []chat.Message {
	out := make([]chat.Message, 0, len(t.turns))
	for _, turn := range t.turns {
		out = append(out, chat.Message{Role: turn.Role, Content: turn.Content})
	}
	return out
}

// Report is a read-only snapshot of a session for export.
type Report struct {
	ScenarioID    string
	ScenarioTitle string
	Stats         scoring.Stats
	Turns         []Turn
	GeneratedAt   time.Time
}
