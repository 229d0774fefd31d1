package mcp

import (
	"context"
	"errors"
)

// AuthenticateTool refreshes the NotebookLM credentials.
type AuthenticateTool struct {
	auth Authenticator
}

func (t *AuthenticateTool) Name() string { return "authenticate" }
func (t *AuthenticateTool) Description() string {
	return `Sign in to NotebookLM and store the session.

method=browser opens Chrome and waits for you to finish the Google sign-in.
method=manual takes a Cookie header copied from a signed-in browser
(cookies) and optionally the csrf_token.

Later tool calls use the new credentials immediately.`
}

func (t *AuthenticateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"method":     map[string]interface{}{"type": "string", "enum": []string{"browser", "manual"}, "default": "browser"},
			"cookies":    map[string]interface{}{"type": "string"},
			"csrf_token": map[string]interface{}{"type": "string"},
		},
	}
}

func (t *AuthenticateTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if t.auth == nil {
		return nil, errors.New("authentication is not available in this server")
	}
	method := getStringArg(args, "method")
	if method == "" {
		method = "browser"
	}
	req := AuthRequest{
		Method:    method,
		Cookies:   getStringArg(args, "cookies"),
		CSRFToken: getStringArg(args, "csrf_token"),
	}
	if method == "manual" && req.Cookies == "" {
		return nil, errMissing("cookies")
	}
	status, err := t.auth.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "auth": status}, nil
}
