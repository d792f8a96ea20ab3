package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatUIServesIndexForUnknownPaths(t *testing.T) {
	h := newTestHandler(t, Dependencies{Sessions: newTestManager(&stubCompleter{}, nil), UI: ChatUI()})
	for _, path := range []string{"/", "/sessions/abc"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, "/v1/sessions") {
			t.Fatalf("%s did not serve the chat page", path)
		}
		if rr.Header().Get("Cache-Control") != "no-cache" {
			t.Fatalf("%s Cache-Control = %q", path, rr.Header().Get("Cache-Control"))
		}
	}
}

func TestChatUIEndsPreviousSessionBeforeCreatingAnother(t *testing.T) {
	rr := httptest.NewRecorder()
	ChatUI().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rr.Body.String()
	deleteAt := strings.Index(body, "await endSession()")
	createAt := strings.Index(body, `call("POST", "/v1/sessions"`)
	if deleteAt < 0 || createAt < 0 || deleteAt > createAt {
		t.Fatalf("new-session handler must delete the previous session first (delete=%d create=%d)", deleteAt, createAt)
	}
}
