package sqlchatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sqlchat/sqlchat/internal/livedb"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("sqlchatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlchat API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 90*time.Second), "HTTP timeout (e.g. 90s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	req, err := buildRequest(strings.TrimSpace(fs.Arg(0)), fs.Args()[1:])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, *apiKey, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, rest []string) (request, error) {
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "sessions":
		return request{method: http.MethodGet, path: "/v1/sessions"}, nil
	case "new-session":
		variant := "mock"
		if len(rest) > 0 {
			variant = rest[0]
		}
		return request{method: http.MethodPost, path: "/v1/sessions", body: map[string]string{"variant": variant}}, nil
	}

	if len(rest) < 1 || strings.TrimSpace(rest[0]) == "" {
		return request{}, fmt.Errorf("command %q requires a session id", command)
	}
	base := "/v1/sessions/" + url.PathEscape(strings.TrimSpace(rest[0]))
	args := rest[1:]

	switch command {
	case "ask":
		message := strings.TrimSpace(strings.Join(args, " "))
		if message == "" {
			return request{}, fmt.Errorf("ask requires a question")
		}
		return request{method: http.MethodPost, path: base + "/messages", body: map[string]string{"message": message}}, nil
	case "connect":
		params, err := livedb.ParseAssignments(args)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPut, path: base + "/connection", body: params}, nil
	case "disconnect":
		return request{method: http.MethodDelete, path: base + "/connection"}, nil
	case "schema":
		return request{method: http.MethodGet, path: base + "/schema"}, nil
	case "transcript":
		return request{method: http.MethodGet, path: base}, nil
	case "archive":
		return request{method: http.MethodPost, path: base + "/archive"}, nil
	case "end-session":
		return request{method: http.MethodDelete, path: base}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint, apiKey string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: sqlchatctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                          GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                           GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  sessions                        GET /v1/sessions")
	_, _ = fmt.Fprintln(w, "  new-session [mock|live]         POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  ask <id> <question...>          POST /v1/sessions/{id}/messages")
	_, _ = fmt.Fprintln(w, "  connect <id> key=value...       PUT /v1/sessions/{id}/connection")
	_, _ = fmt.Fprintln(w, "  disconnect <id>                 DELETE /v1/sessions/{id}/connection")
	_, _ = fmt.Fprintln(w, "  schema <id>                     GET /v1/sessions/{id}/schema")
	_, _ = fmt.Fprintln(w, "  transcript <id>                 GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  archive <id>                    POST /v1/sessions/{id}/archive")
	_, _ = fmt.Fprintln(w, "  end-session <id>                DELETE /v1/sessions/{id}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
