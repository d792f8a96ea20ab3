package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sqlchat/sqlchat/internal/archive"
	"github.com/sqlchat/sqlchat/internal/auth"
	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/livedb"
	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/pipeline"
	"github.com/sqlchat/sqlchat/internal/session"
)

const maxBodyBytes = 1 << 20

type createSessionRequest struct {
	Variant string `json:"variant"`
}

type submitMessageRequest struct {
	Message string `json:"message"`
}

type connectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	Dialect  string `json:"dialect"`
}

type turnResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type connectionResponse struct {
	Connected bool   `json:"connected"`
	Dialect   string `json:"dialect,omitempty"`
	Target    string `json:"target,omitempty"`
}

type sessionResponse struct {
	SessionID  string             `json:"session_id"`
	Variant    string             `json:"variant"`
	Owner      string             `json:"owner"`
	CreatedAt  time.Time          `json:"created_at"`
	Connection connectionResponse `json:"connection"`
	Transcript []turnResponse     `json:"transcript"`
}

type sessionSummary struct {
	SessionID    string             `json:"session_id"`
	Variant      string             `json:"variant"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActiveAt time.Time          `json:"last_active_at"`
	Turns        int                `json:"turns"`
	Connection   connectionResponse `json:"connection"`
}

type submitMessageResponse struct {
	SQL        string         `json:"sql"`
	Response   string         `json:"response,omitempty"`
	Executed   bool           `json:"executed"`
	Reply      string         `json:"reply"`
	Transcript []turnResponse `json:"transcript"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSessions(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleChat); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request createSessionRequest
	if err := decodeBody(w, r, &request, true); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid session request body", false, map[string]any{"details": err.Error()})
		return
	}
	if request.Variant == "" {
		request.Variant = string(conversation.VariantMock)
	}
	variant, err := conversation.ParseVariant(request.Variant)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_VARIANT", err.Error(), false, nil)
		return
	}

	s, err := deps.Sessions.Create(principal(r), variant)
	if err != nil {
		if errors.Is(err, session.ErrLimitReached) {
			writeError(r.Context(), w, http.StatusTooManyRequests, "SESSION_LIMIT", err.Error(), true, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_CREATE_FAILED", err.Error(), true, nil)
		return
	}
	observability.RecordSession(r.Context(), s.ID())
	writeJSON(w, http.StatusCreated, toSessionResponse(s))
}

func handleListSessions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSessions(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleChat); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	sessions := deps.Sessions.List(principal(r))
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			SessionID:    s.ID(),
			Variant:      string(s.Variant()),
			CreatedAt:    s.CreatedAt(),
			LastActiveAt: s.LastActive(),
			Turns:        len(s.Transcript()),
			Connection:   toConnection(s.Connection()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(deps, w, r, auth.RoleChat)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSessions(deps, w, r) {
		return
	}
	if err := requireRole(r, auth.RoleChat); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if err := deps.Sessions.Delete(r.PathValue("id"), principal(r)); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_DELETE_FAILED", err.Error(), false, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleSubmitMessage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(deps, w, r, auth.RoleChat)
	if !ok {
		return
	}

	var request submitMessageRequest
	if err := decodeBody(w, r, &request, false); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid message request body", false, map[string]any{"details": err.Error()})
		return
	}

	ctx := observability.ContextWithSessionID(r.Context(), s.ID())
	reply, err := s.Submit(ctx, request.Message)
	if err != nil {
		writeSubmitError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitMessageResponse{
		SQL:        reply.SQL,
		Response:   reply.Response,
		Executed:   reply.Executed,
		Reply:      reply.Text,
		Transcript: toTurns(s.Transcript()),
	})
}

func writeSubmitError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	case errors.Is(err, session.ErrNotConnected):
		writeError(r.Context(), w, http.StatusConflict, "NOT_CONNECTED", "connect to a database before asking questions", false, nil)
		return
	}

	stage, ok := pipeline.StageOf(err)
	if !ok {
		writeError(r.Context(), w, http.StatusInternalServerError, "SUBMIT_FAILED", err.Error(), false, nil)
		return
	}
	if deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "message submission failed",
			slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
			slog.String("session_id", r.PathValue("id")),
			slog.String("stage", string(stage)),
		)
	}
	details := map[string]any{"stage": string(stage)}
	if stage == pipeline.StageExecuteSQL {
		if errors.Is(err, livedb.ErrReadOnly) {
			writeError(r.Context(), w, http.StatusUnprocessableEntity, "SQL_NOT_ALLOWED", err.Error(), false, details)
			return
		}
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SQL_EXECUTION_FAILED", err.Error(), false, details)
		return
	}
	retryable := true
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		retryable = statusErr.Retryable()
		details["upstream_status"] = statusErr.StatusCode
	}
	writeError(r.Context(), w, http.StatusBadGateway, "PIPELINE_STAGE_FAILED", err.Error(), retryable, details)
}

func handleConnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(deps, w, r, auth.RoleConnect)
	if !ok {
		return
	}

	var request connectRequest
	if err := decodeBody(w, r, &request, false); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection request body", false, map[string]any{"details": err.Error()})
		return
	}

	info, err := s.Connect(r.Context(), livedb.ConnectionParams{
		Host:     request.Host,
		Port:     request.Port,
		User:     request.User,
		Password: request.Password,
		Database: request.Database,
		Dialect:  livedb.Dialect(request.Dialect),
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrWrongVariant):
			writeError(r.Context(), w, http.StatusConflict, "WRONG_VARIANT", "mock sessions cannot connect to a database", false, nil)
		case errors.Is(err, livedb.ErrUnsupportedDialect), errors.Is(err, livedb.ErrInvalidParams):
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_CONNECTION", err.Error(), false, nil)
		default:
			writeError(r.Context(), w, http.StatusBadGateway, "CONNECT_FAILED", err.Error(), true, nil)
		}
		return
	}
	writeJSON(w, http.StatusOK, toConnection(info))
}

func handleDisconnect(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(deps, w, r, auth.RoleConnect)
	if !ok {
		return
	}
	if err := s.Disconnect(); err != nil {
		if errors.Is(err, session.ErrWrongVariant) {
			writeError(r.Context(), w, http.StatusConflict, "WRONG_VARIANT", "mock sessions have no database connection", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "DISCONNECT_FAILED", err.Error(), false, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s, ok := lookupSession(deps, w, r, auth.RoleChat)
	if !ok {
		return
	}
	text, err := s.Schema(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			writeError(r.Context(), w, http.StatusConflict, "NOT_CONNECTED", "connect to a database to see its schema", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "SCHEMA_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID(),
		"variant":    string(s.Variant()),
		"schema":     text,
	})
}

func handleArchive(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archiver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "transcript archive is not configured", false, nil)
		return
	}
	s, ok := lookupSession(deps, w, r, auth.RoleChat)
	if !ok {
		return
	}
	receipt, err := deps.Archiver.Archive(r.Context(), archive.Transcript{
		SessionID: s.ID(),
		Owner:     s.Owner(),
		Variant:   s.Variant(),
		Turns:     s.Transcript(),
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "ARCHIVE_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":   receipt.Key,
		"size":  receipt.Size,
		"etag":  receipt.ETag,
		"turns": receipt.Turns,
	})
}

func requireSessions(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return false
	}
	return true
}

func lookupSession(deps Dependencies, w http.ResponseWriter, r *http.Request, role string) (*session.Session, bool) {
	if !requireSessions(deps, w, r) {
		return nil, false
	}
	if err := requireRole(r, role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil, false
	}
	s, err := deps.Sessions.Get(r.PathValue("id"), principal(r))
	if err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error(), false, nil)
		return nil, false
	}
	observability.RecordSession(r.Context(), s.ID())
	return s, true
}

// decodeBody reads a JSON body. An empty body is accepted when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, target any, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func principal(r *http.Request) string {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.Principal == "" {
		return auth.Anonymous
	}
	return identity.Principal
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func toSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{
		SessionID:  s.ID(),
		Variant:    string(s.Variant()),
		Owner:      s.Owner(),
		CreatedAt:  s.CreatedAt(),
		Connection: toConnection(s.Connection()),
		Transcript: toTurns(s.Transcript()),
	}
}

func toConnection(info session.ConnectionInfo) connectionResponse {
	return connectionResponse{Connected: info.Connected, Dialect: string(info.Dialect), Target: info.Target}
}

func toTurns(turns []conversation.Turn) []turnResponse {
	out := make([]turnResponse, 0, len(turns))
	for _, turn := range turns {
		out = append(out, turnResponse{Role: string(turn.Role()), Content: turn.Content(), CreatedAt: turn.CreatedAt()})
	}
	return out
}
