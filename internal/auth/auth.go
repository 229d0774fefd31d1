// Package auth persists NotebookLM credentials between runs.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"notebooklm-mcp-server/internal/rpc"
)

// Environment fallbacks consulted when no credentials file exists.
const (
	EnvCookies   = "NOTEBOOKLM_COOKIES"
	EnvCSRF      = "NOTEBOOKLM_CSRF"
	EnvSessionID = "NOTEBOOKLM_SID"
)

// ErrNotAuthenticated means neither the file nor the environment held cookies.
var ErrNotAuthenticated = errors.New("no NotebookLM credentials: run login or call authenticate")

// File is the on-disk shape of auth.json.
type File struct {
	Cookies   map[string]string `json:"cookies"`
	CSRFToken string            `json:"csrf_token"`
	SessionID string            `json:"session_id,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// Credentials converts the file into transport credentials.
func (f File) Credentials() rpc.Credentials {
	return rpc.Credentials{
		Cookies:   CookieHeader(f.Cookies),
		CSRFToken: f.CSRFToken,
		SessionID: f.SessionID,
	}
}

// Load reads credentials from path, falling back to the environment when the
// file does not exist.
func Load(path string) (rpc.Credentials, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f File
		if err := json.Unmarshal(data, &f); err != nil {
			return rpc.Credentials{}, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(f.Cookies) == 0 {
			return rpc.Credentials{}, fmt.Errorf("%s: %w", path, ErrNotAuthenticated)
		}
		return f.Credentials(), nil
	case os.IsNotExist(err):
		return FromEnv()
	default:
		return rpc.Credentials{}, err
	}
}

// FromEnv reads credentials from NOTEBOOKLM_* variables.
func FromEnv() (rpc.Credentials, error) {
	cookies := strings.TrimSpace(os.Getenv(EnvCookies))
	if cookies == "" {
		return rpc.Credentials{}, ErrNotAuthenticated
	}
	return rpc.Credentials{
		Cookies:   cookies,
		CSRFToken: strings.TrimSpace(os.Getenv(EnvCSRF)),
		SessionID: strings.TrimSpace(os.Getenv(EnvSessionID)),
	}, nil
}

// Save writes creds to path with owner-only permissions.
func Save(path string, creds rpc.Credentials) error {
	f := File{
		Cookies:   ParseCookieHeader(creds.Cookies),
		CSRFToken: strings.TrimSpace(creds.CSRFToken),
		SessionID: creds.SessionID,
		UpdatedAt: time.Now().UTC(),
	}
	if len(f.Cookies) == 0 {
		return errors.New("refusing to save credentials without cookies")
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ParseCookieHeader splits "a=1; b=2" into a map. Values may contain '='.
func ParseCookieHeader(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if ok && k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// CookieHeader joins cookies as "k=v; k=v", sorted by name so the header is
// stable across runs.
func CookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for k := range cookies {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+cookies[k])
	}
	return strings.Join(parts, "; ")
}
