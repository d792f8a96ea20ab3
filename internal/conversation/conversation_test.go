package conversation

import (
	"strings"
	"testing"
	"time"
)

func TestNewStateSeedsGreeting(t *testing.T) {
	mock := NewState(VariantMock)
	if mock.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", mock.Len())
	}
	first := mock.Turns()[0]
	if first.Role() != RoleAssistant {
		t.Fatalf("Role() = %q", first.Role())
	}
	if first.Content() != MockGreeting {
		t.Fatalf("Content() = %q", first.Content())
	}

	live := NewState(VariantLive)
	if live.Turns()[0].Content() != LiveGreeting {
		t.Fatalf("live greeting = %q", live.Turns()[0].Content())
	}
}

func TestStateAppendIsOrderedAndCopiesOnRead(t *testing.T) {
	state := NewState(VariantMock)
	if err := state.Append(HumanTurn("q1"), AssistantTurn("a1")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	turns := state.Turns()
	if len(turns) != 3 {
		t.Fatalf("len = %d", len(turns))
	}
	if turns[1].Content() != "q1" || turns[2].Content() != "a1" {
		t.Fatalf("unexpected order: %q, %q", turns[1].Content(), turns[2].Content())
	}

	turns[1] = AssistantTurn("tampered")
	if got := state.Turns()[1].Content(); got != "q1" {
		t.Fatalf("state mutated through copy: %q", got)
	}
}

func TestStateAppendRejectsInvalidRole(t *testing.T) {
	state := NewState(VariantMock)
	err := state.Append(HumanTurn("ok"), NewTurn(Role("system"), "nope", time.Now()))
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
	if state.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after rejected append", state.Len())
	}
}

func TestStateWithDoesNotStorePending(t *testing.T) {
	state := NewState(VariantMock)
	turns := state.With(HumanTurn("pending"))
	if len(turns) != 2 {
		t.Fatalf("len(With()) = %d", len(turns))
	}
	if state.Len() != 1 {
		t.Fatalf("Len() = %d, pending turn leaked into state", state.Len())
	}
}

func TestFormatHistory(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := FormatHistory([]Turn{
		NewTurn(RoleAssistant, "Hello!", at),
		NewTurn(RoleHuman, "List 10 customer names", at),
	})
	want := "AI: Hello!\nHuman: List 10 customer names"
	if history != want {
		t.Fatalf("FormatHistory() = %q, want %q", history, want)
	}
	if FormatHistory(nil) != "" {
		t.Fatal("FormatHistory(nil) should be empty")
	}
}

func TestParseVariant(t *testing.T) {
	variant, err := ParseVariant(" LIVE ")
	if err != nil {
		t.Fatalf("ParseVariant() error = %v", err)
	}
	if variant != VariantLive {
		t.Fatalf("variant = %q", variant)
	}
	if _, err := ParseVariant("staging"); err == nil || !strings.Contains(err.Error(), "unsupported variant") {
		t.Fatalf("expected unsupported variant error, got %v", err)
	}
}
