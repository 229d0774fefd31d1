// Package app assembles the NotebookLM clients from configuration and keeps
// them current as credentials change. Both the MCP server and the CLI run
// on top of a Runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sync"

	"notebooklm-mcp-server/internal/auth"
	"notebooklm-mcp-server/internal/browser"
	"notebooklm-mcp-server/internal/config"
	"notebooklm-mcp-server/internal/mangle"
	"notebooklm-mcp-server/internal/mcp"
	"notebooklm-mcp-server/internal/metrics"
	"notebooklm-mcp-server/internal/notebooklm"
	"notebooklm-mcp-server/internal/poll"
	"notebooklm-mcp-server/internal/recorder"
	"notebooklm-mcp-server/internal/research"
	"notebooklm-mcp-server/internal/rpc"
	"notebooklm-mcp-server/internal/store"
)

// LoginFunc runs an interactive browser sign-in.
type LoginFunc func(ctx context.Context, opts browser.LoginOptions) (browser.LoginResult, error)

// Runtime owns the long-lived collaborators (ledger, task store, trace
// recorder) and builds clients lazily from the stored credentials.
type Runtime struct {
	cfg      config.Config
	ledger   *mangle.Engine
	store    *store.Store
	recorder *recorder.Recorder

	httpClient *http.Client
	login      LoginFunc

	mu         sync.Mutex
	clients    *mcp.Clients
	buildLabel string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithHTTPClient replaces the transport used for RPC calls.
func WithHTTPClient(h *http.Client) Option {
	return func(r *Runtime) { r.httpClient = h }
}

// WithLogin replaces the browser sign-in flow.
func WithLogin(fn LoginFunc) Option {
	return func(r *Runtime) { r.login = fn }
}

// New opens the ledger, the research store and the recorder as configured.
func New(cfg config.Config, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		cfg:        cfg,
		login:      browser.Login,
		buildLabel: cfg.Client.BuildLabel,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: cfg.Client.RequestTimeout()}
	}

	ledger, err := mangle.NewEngine(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("research ledger: %w", err)
	}
	r.ledger = ledger

	if cfg.Store.Path != "" {
		st, err := store.Open(config.ExpandHome(cfg.Store.Path))
		if err != nil {
			return nil, err
		}
		r.store = st
	}

	if cfg.Recorder.Enable {
		rec, err := recorder.NewRecorder(config.ExpandHome(cfg.Recorder.Dir), cfg.Recorder.MaxBytes)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("rpc recorder: %w", err)
		}
		if err := rec.Start("session"); err != nil {
			r.Close()
			return nil, fmt.Errorf("rpc recorder: %w", err)
		}
		r.recorder = rec
	}
	return r, nil
}

// Ledger returns the research ledger.
func (r *Runtime) Ledger() *mangle.Engine { return r.ledger }

// Store returns the research task store, or nil when persistence is off.
func (r *Runtime) Store() *store.Store { return r.store }

// Clients returns the clients for the current credentials, building them on
// first use. It fails with auth.ErrNotAuthenticated until credentials exist.
func (r *Runtime) Clients(ctx context.Context) (mcp.Clients, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients != nil {
		return *r.clients, nil
	}

	creds, err := auth.Load(config.ExpandHome(r.cfg.Auth.CredentialsPath))
	if err != nil {
		return mcp.Clients{}, err
	}
	clients, err := r.build(creds)
	if err != nil {
		return mcp.Clients{}, err
	}
	r.clients = &clients
	return clients, nil
}

// Reset drops the cached clients so the next call reloads credentials.
func (r *Runtime) Reset() {
	r.mu.Lock()
	r.clients = nil
	r.mu.Unlock()
}

func (r *Runtime) build(creds rpc.Credentials) (mcp.Clients, error) {
	methods, err := rpc.DefaultMethods().WithOverrides(r.cfg.RPC.Methods)
	if err != nil {
		return mcp.Clients{}, err
	}

	opts := []rpc.Option{
		rpc.WithBaseURL(r.cfg.Client.BaseURL),
		rpc.WithHTTPClient(r.httpClient),
		rpc.WithMethods(methods),
		rpc.WithLanguage(r.cfg.Client.Language),
		rpc.WithUserAgent(r.cfg.Client.UserAgent),
		rpc.WithObserver(metrics.RPCObserver{}),
	}
	if r.recorder != nil {
		opts = append(opts, rpc.WithObserver(r.recorder))
	}
	if r.cfg.Ledger.Enable {
		opts = append(opts, rpc.WithObserver(r.ledger))
	}
	client := rpc.NewClient(rpc.NewSession(creds, r.buildLabel), opts...)

	var apiOpts []notebooklm.Option
	if len(r.cfg.Notebooks.TitleDenylist) > 0 {
		apiOpts = append(apiOpts, notebooklm.WithDenylist(r.cfg.Notebooks.TitleDenylist))
	}
	api := notebooklm.New(client, apiOpts...)

	researchOpts := []research.Option{
		research.WithPollOptions(poll.Options{
			Interval:      r.cfg.Poll.PollInterval(),
			MaxAttempts:   r.cfg.Poll.Attempts(),
			SuccessCodes:  poll.DefaultSuccessCodes,
			RetryNotFound: r.cfg.Poll.ShouldRetryNotFound(),
		}),
	}
	if r.store != nil {
		researchOpts = append(researchOpts, research.WithStore(r.store))
	}
	if r.cfg.Ledger.Enable {
		researchOpts = append(researchOpts, research.WithLedger(r.ledger))
	}

	return mcp.Clients{
		Notebooks: api,
		Research:  research.New(api, researchOpts...),
	}, nil
}

// Authenticate obtains credentials by browser sign-in or from a pasted
// Cookie header, saves them and drops the cached clients.
func (r *Runtime) Authenticate(ctx context.Context, req mcp.AuthRequest) (mcp.AuthStatus, error) {
	var (
		creds   rpc.Credentials
		cookies int
	)
	switch req.Method {
	case "", "browser":
		req.Method = "browser"
		res, err := r.login(ctx, browser.LoginOptions{
			Browser:    r.cfg.Browser,
			BaseURL:    r.cfg.Client.BaseURL,
			ProfileDir: r.profileDir(),
		})
		if err != nil {
			return mcp.AuthStatus{}, err
		}
		creds = res.Credentials
		cookies = res.CookieCount
		if res.BuildLabel != "" && r.cfg.Client.BuildLabel == "" {
			r.mu.Lock()
			r.buildLabel = res.BuildLabel
			r.mu.Unlock()
		}
	case "manual":
		parsed := auth.ParseCookieHeader(req.Cookies)
		if len(parsed) == 0 {
			return mcp.AuthStatus{}, errors.New("no cookies in the supplied header")
		}
		creds = rpc.Credentials{Cookies: auth.CookieHeader(parsed), CSRFToken: req.CSRFToken}
		cookies = len(parsed)
	default:
		return mcp.AuthStatus{}, fmt.Errorf("unknown authentication method %q", req.Method)
	}

	path := config.ExpandHome(r.cfg.Auth.CredentialsPath)
	if err := auth.Save(path, creds); err != nil {
		return mcp.AuthStatus{}, err
	}
	r.Reset()
	log.Printf("credentials saved to %s (%d cookies)", path, cookies)

	return mcp.AuthStatus{
		Method:      req.Method,
		CookieCount: cookies,
		HasCSRF:     creds.CSRFToken != "",
		SavedTo:     path,
	}, nil
}

// profileDir keeps the Chrome profile next to the credentials file.
func (r *Runtime) profileDir() string {
	return filepath.Join(filepath.Dir(config.ExpandHome(r.cfg.Auth.CredentialsPath)), "chrome-profile")
}

// Close releases the store and the recorder.
func (r *Runtime) Close() error {
	var errs []error
	if r.recorder != nil {
		errs = append(errs, r.recorder.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}
