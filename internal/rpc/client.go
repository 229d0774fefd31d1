package rpc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL   = "https://notebooklm.google.com"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	batchPath = "/_/LabsTailwindUi/data/batchexecute"
	queryPath = "/_/LabsTailwindUi/data/google.internal.labs.tailwind.orchestration.v1.LabsTailwindOrchestrationService/GenerateFreeFormStreamed"

	maxErrorBody = 512
)

// Exchange describes one completed request for observers.
type Exchange struct {
	Method     Method
	MethodID   string
	SourcePath string
	RequestID  int
	StatusCode int
	Duration   time.Duration
	Response   string
	Decoded    bool
	Err        error
}

// Observer is notified after every request. Implementations must not block.
type Observer interface {
	ObserveExchange(Exchange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Exchange)

func (f ObserverFunc) ObserveExchange(e Exchange) { f(e) }

// Client sends batchexecute and streaming query requests for one Session.
type Client struct {
	baseURL    string
	language   string
	userAgent  string
	httpClient *http.Client
	session    *Session
	methods    Methods
	observers  []Observer
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithMethods(m Methods) Option {
	return func(c *Client) { c.methods = m }
}

func WithLanguage(hl string) Option {
	return func(c *Client) { c.language = hl }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observers = append(c.observers, o) }
}

// NewClient builds a client bound to session.
func NewClient(session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		language:   "en",
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		session:    session,
		methods:    DefaultMethods(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.language == "" {
		c.language = "en"
	}
	return c
}

// Session returns the session the client mutates.
func (c *Client) Session() *Session { return c.session }

// Methods returns the method table in use.
func (c *Client) Methods() Methods { return c.methods }

// RefreshTokens fetches the service root and re-scrapes the anti-forgery
// token and build label into the session.
func (c *Client) RefreshTokens(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Reason: "fetching service root", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &AuthError{Reason: "reading service root", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AuthError{Reason: fmt.Sprintf("service root returned status %d", resp.StatusCode)}
	}

	csrf, label := ExtractTokens(string(body))
	if csrf == "" {
		return &AuthError{Reason: "anti-forgery token not found in page source; are the cookies still signed in?"}
	}
	c.session.applyTokens(csrf, label)
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.session.CSRFToken() != "" {
		return nil
	}
	return c.RefreshTokens(ctx)
}

// Call performs one batchexecute request. sourcePath is "/" or
// "/notebook/{id}". The decoded payload is returned with ok=false when the
// response held no data frame; that is not an error.
func (c *Client) Call(ctx context.Context, method Method, sourcePath string, params interface{}) (gjson.Result, bool, error) {
	if err := c.ensureToken(ctx); err != nil {
		return gjson.Result{}, false, err
	}
	if sourcePath == "" {
		sourcePath = "/"
	}

	methodID := c.methods.ID(method)
	state := c.session.State()
	body, err := EncodeBatch(methodID, params, state.CSRFToken)
	if err != nil {
		return gjson.Result{}, false, fmt.Errorf("encoding %s params: %w", method, err)
	}

	reqID := c.session.NextRequestID()
	q := c.baseQuery(state, reqID)
	q.Set("rpcids", methodID)
	q.Set("source-path", sourcePath)

	ex := Exchange{Method: method, MethodID: methodID, SourcePath: sourcePath, RequestID: reqID}
	text, status, dur, err := c.post(ctx, batchPath+"?"+q.Encode(), body, methodID)
	ex.StatusCode, ex.Duration, ex.Response, ex.Err = status, dur, text, err
	if err != nil {
		c.notify(ex)
		return gjson.Result{}, false, err
	}

	payload, ok := Decode(text)
	ex.Decoded = ok
	c.notify(ex)
	return payload, ok, nil
}

// Query posts to the streaming free-form endpoint and returns the raw,
// unparsed response text.
func (c *Client) Query(ctx context.Context, params interface{}) (string, error) {
	if err := c.ensureToken(ctx); err != nil {
		return "", err
	}
	state := c.session.State()
	body, err := EncodeQuery(params, state.CSRFToken)
	if err != nil {
		return "", fmt.Errorf("encoding query params: %w", err)
	}
	reqID := c.session.NextRequestID()
	q := c.baseQuery(state, reqID)

	ex := Exchange{Method: "query", MethodID: "GenerateFreeFormStreamed", SourcePath: "/", RequestID: reqID}
	text, status, dur, err := c.post(ctx, queryPath+"?"+q.Encode(), body, ex.MethodID)
	ex.StatusCode, ex.Duration, ex.Response, ex.Err = status, dur, text, err
	ex.Decoded = err == nil
	c.notify(ex)
	return text, err
}

func (c *Client) baseQuery(state SessionState, reqID int) url.Values {
	q := url.Values{}
	q.Set("bl", state.BuildLabel)
	q.Set("hl", c.language)
	q.Set("_reqid", strconv.Itoa(reqID))
	q.Set("rt", "c")
	if state.SessionID != "" {
		q.Set("f.sid", state.SessionID)
	}
	return q
}

func (c *Client) post(ctx context.Context, pathAndQuery, body, methodID string) (string, int, time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathAndQuery, strings.NewReader(body))
	if err != nil {
		return "", 0, 0, &TransportError{Method: methodID, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, time.Since(start), &TransportError{Method: methodID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return "", resp.StatusCode, elapsed, &TransportError{Method: methodID, StatusCode: resp.StatusCode, Err: err}
	}
	text := string(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := text
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return text, resp.StatusCode, elapsed, &TransportError{Method: methodID, StatusCode: resp.StatusCode, Body: snippet}
	}
	return text, resp.StatusCode, elapsed, nil
}

func (c *Client) setHeaders(req *http.Request) {
	h := req.Header
	h.Set("Cookie", c.session.State().Cookies)
	h.Set("User-Agent", c.userAgent)
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	h.Set("Origin", c.baseURL)
	h.Set("Referer", c.baseURL+"/")
	h.Set("X-Goog-AuthUser", "0")
	h.Set("Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"Linux"`)
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
}

func (c *Client) notify(e Exchange) {
	for _, o := range c.observers {
		o.ObserveExchange(e)
	}
}

// NotebookPath returns the source-path for calls scoped to a notebook.
func NotebookPath(notebookID string) string {
	return "/notebook/" + notebookID
}
