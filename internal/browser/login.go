// Package browser drives a real Chrome through the interactive Google sign-in
// and harvests the cookies and page tokens the RPC client needs.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"notebooklm-mcp-server/internal/config"
	"notebooklm-mcp-server/internal/poll"
	"notebooklm-mcp-server/internal/rpc"
)

const (
	loginCheckInterval = 2 * time.Second
	// tokenMarker appears in the page bootstrap data once the user is signed in.
	tokenMarker = `"SNlM0e"`
)

// cookieURLs are the origins whose cookies authenticate batchexecute calls.
var cookieURLs = []string{
	"https://notebooklm.google.com",
	"https://www.google.com",
	"https://accounts.google.com",
}

// LoginOptions configures one login run.
type LoginOptions struct {
	Browser config.BrowserConfig
	// BaseURL is the service root to open (defaults to rpc.DefaultBaseURL).
	BaseURL string
	// ProfileDir keeps the Chrome profile between runs so the user rarely
	// has to sign in twice. Ignored when attaching via DebuggerURL.
	ProfileDir string
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Credentials rpc.Credentials
	BuildLabel  string
	CookieCount int
}

// Login opens the service in Chrome, waits for the user to finish signing
// in, and returns the session cookies with the anti-forgery token scraped
// from the page.
func Login(ctx context.Context, opts LoginOptions) (LoginResult, error) {
	base := opts.BaseURL
	if base == "" {
		base = rpc.DefaultBaseURL
	}
	host := hostOf(base)

	controlURL, cleanup, err := controlURLFor(opts)
	if err != nil {
		return LoginResult{}, err
	}
	defer cleanup()

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return LoginResult{}, fmt.Errorf("connect to chrome: %w", err)
	}
	// Attached browsers belong to the user; only close what we launched.
	if opts.Browser.DebuggerURL == "" {
		defer b.Close()
	}
	log.Printf("login: browser connected at %s", controlURL)

	page, err := b.Page(proto.TargetCreateTarget{URL: base})
	if err != nil {
		return LoginResult{}, fmt.Errorf("open %s: %w", base, err)
	}
	_ = page.Timeout(opts.Browser.NavTimeout()).WaitLoad()

	attempts := int(opts.Browser.LoginWait() / loginCheckInterval)
	if attempts < 1 {
		attempts = 1
	}
	check := func(ctx context.Context) (poll.Observation[string], error) {
		info, err := page.Info()
		if err != nil {
			return poll.Observation[string]{}, fmt.Errorf("page info: %w", err)
		}
		html, err := page.HTML()
		if err != nil {
			// The page is mid-navigation through the sign-in flow.
			return poll.Observation[string]{Found: true, Code: 1}, nil
		}
		if loginReady(info.URL, html, host) {
			return poll.Observation[string]{Found: true, Code: 2, Snapshot: html}, nil
		}
		return poll.Observation[string]{Found: true, Code: 1}, nil
	}

	log.Printf("login: waiting up to %s for sign-in", opts.Browser.LoginWait())
	html, err := poll.Poll[string](ctx, check, poll.Options{
		Interval:    loginCheckInterval,
		MaxAttempts: attempts,
	})
	if err != nil {
		var te *poll.TimeoutError
		if errors.As(err, &te) {
			return LoginResult{}, fmt.Errorf("login not completed within %s: %w", opts.Browser.LoginWait(), err)
		}
		return LoginResult{}, err
	}

	res, err := proto.NetworkGetCookies{Urls: cookieURLs}.Call(page)
	if err != nil {
		return LoginResult{}, fmt.Errorf("get cookies: %w", err)
	}
	cookies := cookieHeader(res.Cookies)
	if cookies == "" {
		return LoginResult{}, errors.New("no cookies found after sign-in")
	}

	csrf, label := rpc.ExtractTokens(html)
	log.Printf("login: captured %d cookies (csrf token present: %t)", len(res.Cookies), csrf != "")
	return LoginResult{
		Credentials: rpc.Credentials{Cookies: cookies, CSRFToken: csrf},
		BuildLabel:  label,
		CookieCount: len(res.Cookies),
	}, nil
}

// controlURLFor attaches to DebuggerURL or launches Chrome, honouring a
// custom binary and flags from Launch.
func controlURLFor(opts LoginOptions) (string, func(), error) {
	cfg := opts.Browser
	if cfg.DebuggerURL != "" {
		return cfg.DebuggerURL, func() {}, nil
	}

	l := newLauncher(cfg, opts.ProfileDir)
	u, err := l.Launch()
	if err != nil {
		return "", nil, fmt.Errorf("launch chrome: %w", err)
	}
	return u, l.Kill, nil
}

func newLauncher(cfg config.BrowserConfig, profileDir string) *launcher.Launcher {
	l := launcher.New().Headless(cfg.IsHeadless())
	if profileDir != "" {
		l = l.UserDataDir(profileDir)
	}
	if len(cfg.Launch) == 0 {
		return l
	}
	l = l.Bin(cfg.Launch[0])
	for _, rawFlag := range cfg.Launch[1:] {
		name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// loginReady reports whether the page has left the sign-in flow and carries
// the bootstrap token.
func loginReady(pageURL, html, host string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host != host {
		return false
	}
	if strings.Contains(u.Path, "signin") {
		return false
	}
	return strings.Contains(html, tokenMarker)
}

// cookieHeader flattens browser cookies into a Cookie header. When a name is
// set on several domains the most specific domain wins.
func cookieHeader(cookies []*proto.NetworkCookie) string {
	type picked struct {
		value  string
		domain string
	}
	byName := make(map[string]picked)
	var order []string
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		prev, seen := byName[c.Name]
		if !seen {
			order = append(order, c.Name)
		}
		if !seen || len(strings.TrimPrefix(c.Domain, ".")) > len(strings.TrimPrefix(prev.domain, ".")) {
			byName[c.Name] = picked{value: c.Value, domain: c.Domain}
		}
	}
	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, name+"="+byName[name].value)
	}
	return strings.Join(parts, "; ")
}

func hostOf(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return u.Host
}
