package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/livedb"
	"github.com/sqlchat/sqlchat/internal/session"
)

type fakeChat struct {
	variant    conversation.Variant
	turns      []conversation.Turn
	submitErr  error
	connectErr error
	submitted  []string
	params     []livedb.ConnectionParams
	connected  bool
}

func newFakeChat(variant conversation.Variant) *fakeChat {
	return &fakeChat{
		variant: variant,
		turns:   []conversation.Turn{conversation.AssistantTurn(conversation.Greeting(variant))},
	}
}

func (f *fakeChat) Variant() conversation.Variant   { return f.variant }
func (f *fakeChat) Transcript() []conversation.Turn { return f.turns }

func (f *fakeChat) Submit(_ context.Context, message string) (session.Reply, error) {
	f.submitted = append(f.submitted, message)
	if f.submitErr != nil {
		return session.Reply{}, f.submitErr
	}
	f.turns = append(f.turns, conversation.HumanTurn(message), conversation.AssistantTurn("There are 12 customers."))
	return session.Reply{SQL: "SELECT COUNT(*) FROM customers", Text: "There are 12 customers."}, nil
}

func (f *fakeChat) Connect(_ context.Context, params livedb.ConnectionParams) (session.ConnectionInfo, error) {
	f.params = append(f.params, params)
	if f.connectErr != nil {
		return session.ConnectionInfo{}, f.connectErr
	}
	f.connected = true
	return f.Connection(), nil
}

func (f *fakeChat) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeChat) Connection() session.ConnectionInfo {
	if !f.connected {
		return session.ConnectionInfo{}
	}
	return session.ConnectionInfo{Connected: true, Dialect: livedb.DialectPostgres, Target: "postgres://db:5432/shop"}
}

func (f *fakeChat) Schema(context.Context) (string, error) {
	return "CREATE TABLE customers (id INT)", nil
}

func typeText(m Model, text string) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(Model)
}

func pressEnter(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func TestNewModelShowsGreeting(t *testing.T) {
	m := New(context.Background(), newFakeChat(conversation.VariantMock))
	m.width = 400
	view := m.View()
	if !strings.Contains(view, conversation.MockGreeting) {
		t.Fatalf("view missing greeting: %s", view)
	}
	if !strings.Contains(view, "demo schema") {
		t.Fatalf("view missing variant header: %s", view)
	}
}

func TestSubmitQuestion(t *testing.T) {
	chat := newFakeChat(conversation.VariantMock)
	m := typeText(New(context.Background(), chat), "how many customers?")

	m, cmd := pressEnter(t, m)
	if !m.busy {
		t.Fatal("model should be busy while the question runs")
	}
	if len(m.input) != 0 {
		t.Fatalf("input not cleared: %q", string(m.input))
	}

	m = run(t, m, cmd)
	if m.busy {
		t.Fatal("model should be idle after the reply")
	}
	if len(chat.submitted) != 1 || chat.submitted[0] != "how many customers?" {
		t.Fatalf("submitted = %#v", chat.submitted)
	}
	view := m.View()
	if !strings.Contains(view, "There are 12 customers.") || !strings.Contains(view, "SELECT COUNT(*) FROM customers") {
		t.Fatalf("view missing reply: %s", view)
	}
}

func TestEnterIgnoredWhileBusy(t *testing.T) {
	m := New(context.Background(), newFakeChat(conversation.VariantMock))
	m.busy = true
	m = typeText(m, "again")
	m, cmd := pressEnter(t, m)
	if cmd != nil {
		t.Fatal("expected no command while busy")
	}
	if string(m.input) != "again" {
		t.Fatalf("input = %q", string(m.input))
	}
}

func TestSubmitErrorIsShown(t *testing.T) {
	chat := newFakeChat(conversation.VariantLive)
	chat.submitErr = session.ErrNotConnected
	m := typeText(New(context.Background(), chat), "hi")
	m, cmd := pressEnter(t, m)
	m = run(t, m, cmd)

	if !strings.Contains(m.View(), session.ErrNotConnected.Error()) {
		t.Fatalf("view missing error: %s", m.View())
	}
	if len(chat.turns) != 1 {
		t.Fatalf("turns = %d", len(chat.turns))
	}
}

func TestConnectCommand(t *testing.T) {
	chat := newFakeChat(conversation.VariantLive)
	m := typeText(New(context.Background(), chat), "/connect host=db user=app password=pw database=shop")
	m, cmd := pressEnter(t, m)
	m = run(t, m, cmd)

	if len(chat.params) != 1 {
		t.Fatalf("connect calls = %d", len(chat.params))
	}
	if chat.params[0].Host != "db" || chat.params[0].Database != "shop" || chat.params[0].Password != "pw" {
		t.Fatalf("params = %+v", chat.params[0])
	}
	if !m.connection.Connected {
		t.Fatal("connection not recorded")
	}
	if !strings.Contains(m.View(), "postgres://db:5432/shop") {
		t.Fatalf("header missing target: %s", m.View())
	}
}

func TestConnectFailureKeepsState(t *testing.T) {
	chat := newFakeChat(conversation.VariantLive)
	chat.connectErr = errors.New("password authentication failed")
	m := typeText(New(context.Background(), chat), "/connect user=app database=shop")
	m, cmd := pressEnter(t, m)
	m = run(t, m, cmd)

	if m.connection.Connected {
		t.Fatal("failed connect should not mark connected")
	}
	if !strings.Contains(m.errorMessage, "password authentication failed") {
		t.Fatalf("errorMessage = %q", m.errorMessage)
	}
}

func TestConnectRejectsMalformedArguments(t *testing.T) {
	chat := newFakeChat(conversation.VariantLive)
	m := typeText(New(context.Background(), chat), "/connect host")
	m, cmd := pressEnter(t, m)
	if cmd != nil {
		t.Fatal("expected no command for malformed arguments")
	}
	if len(chat.params) != 0 || m.errorMessage == "" {
		t.Fatalf("params=%v error=%q", chat.params, m.errorMessage)
	}
}

func TestConnectRequiresLiveVariant(t *testing.T) {
	chat := newFakeChat(conversation.VariantMock)
	m := typeText(New(context.Background(), chat), "/connect user=app database=shop")
	m, cmd := pressEnter(t, m)
	if cmd != nil || m.errorMessage == "" {
		t.Fatalf("cmd=%v error=%q", cmd, m.errorMessage)
	}
}

func TestSchemaAndDisconnectCommands(t *testing.T) {
	chat := newFakeChat(conversation.VariantLive)
	chat.connected = true
	m := New(context.Background(), chat)

	m = typeText(m, "/schema")
	m, cmd := pressEnter(t, m)
	m = run(t, m, cmd)
	if !strings.Contains(m.View(), "CREATE TABLE customers") {
		t.Fatalf("view missing schema: %s", m.View())
	}

	m = typeText(m, "/disconnect")
	m, cmd = pressEnter(t, m)
	m = run(t, m, cmd)
	if m.connection.Connected || chat.connected {
		t.Fatal("expected disconnected")
	}
}

func TestQuitKeys(t *testing.T) {
	m := New(context.Background(), newFakeChat(conversation.VariantMock))
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	m = typeText(m, "/quit")
	if _, cmd := pressEnter(t, m); cmd == nil {
		t.Fatal("/quit should quit")
	}
}

func TestBackspaceAndUnknownCommand(t *testing.T) {
	m := typeText(New(context.Background(), newFakeChat(conversation.VariantMock)), "/nope!")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = updated.(Model)
	if string(m.input) != "/nope" {
		t.Fatalf("input = %q", string(m.input))
	}
	m, _ = pressEnter(t, m)
	if !strings.Contains(m.errorMessage, "unknown command /nope") {
		t.Fatalf("errorMessage = %q", m.errorMessage)
	}
}

func TestClearNotice(t *testing.T) {
	m := New(context.Background(), newFakeChat(conversation.VariantMock))
	m.notice = "connected"
	updated, _ := m.Update(ClearNoticeMsg{})
	if updated.(Model).notice != "" {
		t.Fatal("notice not cleared")
	}
}

func TestVisibleKeepsTail(t *testing.T) {
	m := New(context.Background(), newFakeChat(conversation.VariantMock))
	m.height = 10
	lines := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	got := m.visible(lines)
	if len(got) != 4 || got[3] != "8" {
		t.Fatalf("visible = %#v", got)
	}
	m.scroll = 2
	got = m.visible(lines)
	if got[3] != "6" {
		t.Fatalf("scrolled visible = %#v", got)
	}
}
