package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sqlchat/sqlchat/internal/observability"
)

type contextKey string

const identityKey contextKey = "auth_identity"

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// Middleware authenticates session routes by API key. The resolved principal
// becomes the session owner, and it is attached to the request context so
// pipeline logs and the access log name who asked and about which session.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sessionID := r.PathValue("id")
			if sessionID != "" {
				observability.RecordSession(ctx, sessionID)
				ctx = observability.ContextWithSessionID(ctx, sessionID)
			}

			apiKey := extractAPIKey(r)
			if apiKey == "" {
				observability.ObserveAuthFailure("missing_key")
				writeUnauthorized(w, r, "missing API key")
				return
			}
			identity, ok := validator.Validate(ctx, apiKey)
			if !ok {
				observability.ObserveAuthFailure("invalid_key")
				logger.WarnContext(ctx, "authentication failed",
					append(observability.RequestAttrs(ctx),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)...,
				)
				writeUnauthorized(w, r, "invalid API key")
				return
			}

			observability.RecordPrincipal(ctx, identity.Principal)
			ctx = observability.ContextWithPrincipal(WithIdentity(ctx, identity), identity.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="sqlchat"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    message,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
