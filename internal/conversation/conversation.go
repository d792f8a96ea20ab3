package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleHuman     Role = "human"
)

func (r Role) Valid() bool {
	return r == RoleAssistant || r == RoleHuman
}

// Label is the speaker prefix used when the history is rendered into a prompt.
func (r Role) Label() string {
	switch r {
	case RoleAssistant:
		return "AI"
	case RoleHuman:
		return "Human"
	default:
		return string(r)
	}
}

type Variant string

const (
	VariantMock Variant = "mock"
	VariantLive Variant = "live"
)

func ParseVariant(raw string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(raw))) {
	case VariantMock:
		return VariantMock, nil
	case VariantLive:
		return VariantLive, nil
	default:
		return "", fmt.Errorf("unsupported variant %q: expected mock or live", raw)
	}
}

const (
	MockGreeting = "Hello! This is an SQL assistant for a mock database. Ask anything about the data, and I'll generate SQL queries and explain them."
	LiveGreeting = "Hello! I'm a SQL assistant. Connect to your database, then ask me anything about it."
)

func Greeting(variant Variant) string {
	if variant == VariantLive {
		return LiveGreeting
	}
	return MockGreeting
}

// Turn is a single message. Its fields are unexported so a Turn cannot be
// changed after construction.
type Turn struct {
	role      Role
	content   string
	createdAt time.Time
}

func NewTurn(role Role, content string, createdAt time.Time) Turn {
	return Turn{role: role, content: content, createdAt: createdAt.UTC()}
}

func HumanTurn(content string) Turn {
	return NewTurn(RoleHuman, content, time.Now())
}

func AssistantTurn(content string) Turn {
	return NewTurn(RoleAssistant, content, time.Now())
}

func (t Turn) Role() Role           { return t.role }
func (t Turn) Content() string      { return t.content }
func (t Turn) CreatedAt() time.Time { return t.createdAt }

// State is the append-only transcript of one session.
type State struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewState(variant Variant) *State {
	return &State{turns: []Turn{AssistantTurn(Greeting(variant))}}
}

func (s *State) Append(turns ...Turn) error {
	for _, turn := range turns {
		if !turn.role.Valid() {
			return fmt.Errorf("invalid turn role %q", turn.role)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
	return nil
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Turns returns a copy of the transcript.
func (s *State) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// With returns the current turns followed by pending, without storing pending.
func (s *State) With(pending ...Turn) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, 0, len(s.turns)+len(pending))
	out = append(out, s.turns...)
	return append(out, pending...)
}

// FormatHistory renders turns one per line as "<Label>: <content>".
func FormatHistory(turns []Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(turn.role.Label())
		b.WriteString(": ")
		b.WriteString(turn.content)
	}
	return b.String()
}
