package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vtcode/pkg/engine/api"
)

// WebFetchTool performs an HTTP GET against an allowlisted set of hosts.
// It is path-free: the policy layer skips workspace-boundary checks for it.
type WebFetchTool struct {
	BaseTool
	allowlist  map[string]bool
	maxBytes   int
	httpClient *http.Client
}

// NewWebFetchTool creates the web_fetch tool. An empty allowlist means no
// host is reachable until the operator adds one via policy configuration.
func NewWebFetchTool(allowlist []string) *WebFetchTool {
	hosts := make(map[string]bool, len(allowlist))
	for _, h := range allowlist {
		hosts[strings.ToLower(h)] = true
	}
	return &WebFetchTool{
		BaseTool: NewBaseTool(
			"web_fetch",
			"Fetch a URL's contents via HTTP GET. Only hosts on the configured allowlist are reachable.",
			[]ParameterDef{
				{Name: "url", Type: "string", Description: "URL to fetch (must be http or https)", Required: true},
			},
			api.RiskHigh,
		),
		allowlist:  hosts,
		maxBytes:   512 * 1024,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args api.Args) (api.ToolResult, error) {
	raw := GetStringArg(args, "url", "")
	if raw == "" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("url is required")), nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("invalid url: %w", err)), nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return toolFailed(api.ReasonInvalidArgs, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)), nil
	}
	if !t.hostAllowed(parsed.Hostname()) {
		return toolFailed(api.ReasonPermissionDenied, fmt.Errorf("host %q is not on the web_fetch allowlist", parsed.Hostname())), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return toolFailed(api.ReasonInvalidArgs, err), nil
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return toolFailed(api.ReasonIoError, err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxBytes)+1))
	if err != nil {
		return toolFailed(api.ReasonIoError, err), nil
	}
	truncated := false
	if len(body) > t.maxBytes {
		body = body[:t.maxBytes]
		truncated = true
	}

	content := fmt.Sprintf("HTTP %d %s\n\n%s", resp.StatusCode, resp.Status, string(body))
	return api.ToolResult{Content: content, Status: api.StatusCompleted, Truncated: truncated}, nil
}

func (t *WebFetchTool) hostAllowed(host string) bool {
	return t.allowlist[strings.ToLower(host)]
}
