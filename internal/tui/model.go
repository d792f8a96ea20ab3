// Package tui is a terminal chat shell over a single in-process session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/livedb"
	"github.com/sqlchat/sqlchat/internal/session"
)

// Chat is the session surface the shell drives. *session.Session satisfies it.
type Chat interface {
	Variant() conversation.Variant
	Transcript() []conversation.Turn
	Submit(ctx context.Context, message string) (session.Reply, error)
	Connect(ctx context.Context, params livedb.ConnectionParams) (session.ConnectionInfo, error)
	Disconnect() error
	Connection() session.ConnectionInfo
	Schema(ctx context.Context) (string, error)
}

const helpText = `/connect host=H port=P user=U password=S database=D dialect=postgres|duckdb|sqlite
/disconnect   drop the live connection
/schema       show the schema used for SQL generation
/quit         exit`

// Model is the root bubbletea model for the chat shell.
type Model struct {
	ctx  context.Context
	chat Chat

	input   []rune
	busy    bool
	lastSQL string

	connection session.ConnectionInfo
	schemaText string

	errorMessage string
	notice       string

	width  int
	height int
	scroll int
}

func New(ctx context.Context, chat Chat) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	return Model{
		ctx:        ctx,
		chat:       chat,
		connection: chat.Connection(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func submitCmd(ctx context.Context, chat Chat, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := chat.Submit(ctx, text)
		return ReplyMsg{Reply: reply, Err: err}
	}
}

func connectCmd(ctx context.Context, chat Chat, params livedb.ConnectionParams) tea.Cmd {
	return func() tea.Msg {
		info, err := chat.Connect(ctx, params)
		return ConnectedMsg{Info: info, Err: err}
	}
}

func disconnectCmd(chat Chat) tea.Cmd {
	return func() tea.Msg {
		return DisconnectedMsg{Err: chat.Disconnect()}
	}
}

func schemaCmd(ctx context.Context, chat Chat) tea.Cmd {
	return func() tea.Msg {
		text, err := chat.Schema(ctx)
		return SchemaMsg{Text: text, Err: err}
	}
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ReplyMsg:
		m.busy = false
		m.scroll = 0
		if msg.Err != nil {
			m.errorMessage = msg.Err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.lastSQL = msg.Reply.SQL
		return m, nil

	case ConnectedMsg:
		m.busy = false
		if msg.Err != nil {
			m.errorMessage = "connect failed: " + msg.Err.Error()
			return m, nil
		}
		m.errorMessage = ""
		m.connection = msg.Info
		m.notice = "connected to " + msg.Info.Target
		return m, clearNoticeCmd()

	case DisconnectedMsg:
		if msg.Err != nil {
			m.errorMessage = msg.Err.Error()
			return m, nil
		}
		m.connection = session.ConnectionInfo{}
		m.notice = "disconnected"
		return m, clearNoticeCmd()

	case SchemaMsg:
		if msg.Err != nil {
			m.errorMessage = msg.Err.Error()
			return m, nil
		}
		m.schemaText = msg.Text
		return m, nil

	case ClearNoticeMsg:
		m.notice = ""
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC, KeyEsc:
		return m, tea.Quit
	case KeyEnter:
		return m.handleEnter()
	case KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case KeyCtrlU:
		m.input = nil
		return m, nil
	case KeyCtrlL:
		m.schemaText = ""
		m.errorMessage = ""
		return m, nil
	case KeyUp:
		m.scroll++
		return m, nil
	case KeyDown:
		if m.scroll > 0 {
			m.scroll--
		}
		return m, nil
	}
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.input = append(m.input, msg.Runes...)
		if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
			m.input = append(m.input, ' ')
		}
	}
	return m, nil
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	text := strings.TrimSpace(string(m.input))
	if text == "" {
		return m, nil
	}
	m.input = nil
	m.errorMessage = ""

	if !strings.HasPrefix(text, "/") {
		m.busy = true
		m.schemaText = ""
		return m, submitCmd(m.ctx, m.chat, text)
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case CommandQuit:
		return m, tea.Quit
	case CommandHelp:
		m.schemaText = helpText
		return m, nil
	case CommandSchema:
		return m, schemaCmd(m.ctx, m.chat)
	case CommandDisconnect:
		if m.chat.Variant() != conversation.VariantLive {
			m.errorMessage = "the demo schema has no connection"
			return m, nil
		}
		return m, disconnectCmd(m.chat)
	case CommandConnect:
		if m.chat.Variant() != conversation.VariantLive {
			m.errorMessage = "restart with -variant live to connect to a database"
			return m, nil
		}
		params, err := livedb.ParseAssignments(fields[1:])
		if err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		m.busy = true
		return m, connectCmd(m.ctx, m.chat, params)
	default:
		m.errorMessage = fmt.Sprintf("unknown command %s, try /help", fields[0])
		return m, nil
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	body := m.renderTranscript()
	if m.schemaText != "" {
		body = append(body, "", statusStyle.Render(m.schemaText))
	}
	b.WriteString(strings.Join(m.visible(body), "\n"))
	b.WriteString("\n\n")

	if m.errorMessage != "" {
		b.WriteString(errorStyle.Render("error: "+m.errorMessage) + "\n")
	} else if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	if m.busy {
		b.WriteString(statusStyle.Render("thinking...") + "\n")
	}
	b.WriteString(promptStyle.Render("> ") + string(m.input) + "\n")
	b.WriteString(footerStyle.Render("enter send · /help commands · ↑/↓ scroll · esc quit"))
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("sqlchat")
	if m.chat.Variant() != conversation.VariantLive {
		return title + "  " + statusStyle.Render("demo schema")
	}
	if !m.connection.Connected {
		return title + "  " + statusStyle.Render("not connected · /connect to begin")
	}
	return title + "  " + connectedStyle.Render(fmt.Sprintf("%s · %s", m.connection.Dialect, m.connection.Target))
}

func (m Model) renderTranscript() []string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrap := lipgloss.NewStyle().Width(width)

	turns := m.chat.Transcript()
	var lines []string
	for i, turn := range turns {
		label := assistantLabelStyle.Render(turn.Role().Label() + ":")
		if turn.Role() == conversation.RoleHuman {
			label = humanLabelStyle.Render(turn.Role().Label() + ":")
		}
		rendered := wrap.Render(label + " " + turn.Content())
		lines = append(lines, strings.Split(rendered, "\n")...)
		if i == len(turns)-1 && turn.Role() == conversation.RoleAssistant && m.lastSQL != "" {
			lines = append(lines, strings.Split(sqlStyle.Render(m.lastSQL), "\n")...)
		}
		lines = append(lines, "")
	}
	return lines
}

// visible returns the tail of lines that fits the window, shifted by scroll.
func (m Model) visible(lines []string) []string {
	available := m.height - 6
	if m.height <= 0 || available <= 0 || len(lines) <= available {
		return lines
	}
	end := len(lines) - m.scroll
	if end < available {
		end = available
	}
	return lines[end-available : end]
}
