package tui

import "github.com/sqlchat/sqlchat/internal/session"

// ReplyMsg carries the outcome of one submitted question.
type ReplyMsg struct {
	Reply session.Reply
	Err   error
}

// ConnectedMsg carries the outcome of a /connect command.
type ConnectedMsg struct {
	Info session.ConnectionInfo
	Err  error
}

type DisconnectedMsg struct {
	Err error
}

// SchemaMsg carries the schema text requested with /schema.
type SchemaMsg struct {
	Text string
	Err  error
}

// ClearNoticeMsg clears a transient notice after a timeout.
type ClearNoticeMsg struct{}
