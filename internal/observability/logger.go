package observability

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/sqlchat/sqlchat/internal/config"
)

type ctxKey string

const (
	traceIDKey   ctxKey = "trace_id"
	sessionIDKey ctxKey = "session_id"
	principalKey ctxKey = "principal"
	notesKey     ctxKey = "request_notes"
)

func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: cfg.Observability.LogLevel})
	} else {
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: cfg.Observability.LogLevel})
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

// NopLogger discards everything. Components fall back to it when the caller
// does not supply a logger.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func SessionIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(sessionIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

func PrincipalFromContext(ctx context.Context) string {
	value, ok := ctx.Value(principalKey).(string)
	if !ok {
		return ""
	}
	return value
}

// RequestAttrs returns the correlation attributes carried by ctx.
func RequestAttrs(ctx context.Context) []any {
	attrs := make([]any, 0, 3)
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if principal := PrincipalFromContext(ctx); principal != "" {
		attrs = append(attrs, slog.String("principal", principal))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		attrs = append(attrs, slog.String("session_id", sessionID))
	}
	return attrs
}

// requestNotes lets inner handlers report who made a request and which
// session it touched back to the access log written by LoggingMiddleware.
type requestNotes struct {
	mu        sync.Mutex
	principal string
	sessionID string
}

func withRequestNotes(ctx context.Context) (context.Context, *requestNotes) {
	notes := &requestNotes{}
	return context.WithValue(ctx, notesKey, notes), notes
}

// RecordPrincipal notes the authenticated principal for the access log.
func RecordPrincipal(ctx context.Context, principal string) {
	if notes, ok := ctx.Value(notesKey).(*requestNotes); ok {
		notes.mu.Lock()
		notes.principal = principal
		notes.mu.Unlock()
	}
}

// RecordSession notes the session a request addressed for the access log.
func RecordSession(ctx context.Context, sessionID string) {
	if notes, ok := ctx.Value(notesKey).(*requestNotes); ok {
		notes.mu.Lock()
		notes.sessionID = sessionID
		notes.mu.Unlock()
	}
}

func (n *requestNotes) attrs() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	attrs := make([]any, 0, 2)
	if n.principal != "" {
		attrs = append(attrs, slog.String("principal", n.principal))
	}
	if n.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", n.sessionID))
	}
	return attrs
}
