package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"vtcode/pkg/engine/api"
)

func TestWebFetchTool_AllowlistedHostSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}

	tool := NewWebFetchTool([]string{u.Hostname()})
	res, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusCompleted {
		t.Fatalf("expected completed status, got %q: %s", res.Status, res.Error)
	}
}

func TestWebFetchTool_RejectsUnlistedHost(t *testing.T) {
	tool := NewWebFetchTool([]string{"example.com"})
	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://not-allowed.example"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusFailed || res.Reason != api.ReasonPermissionDenied {
		t.Fatalf("expected permission_denied failure, got status=%q reason=%q", res.Status, res.Reason)
	}
}

func TestWebFetchTool_RejectsNonHTTPScheme(t *testing.T) {
	tool := NewWebFetchTool([]string{"example.com"})
	res, err := tool.Execute(context.Background(), map[string]any{"url": "ftp://example.com/file"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != api.StatusFailed || res.Reason != api.ReasonInvalidArgs {
		t.Fatalf("expected invalid_args failure, got status=%q reason=%q", res.Status, res.Reason)
	}
}
