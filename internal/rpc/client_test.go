package rpc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

type fakeService struct {
	mu       sync.Mutex
	requests []recordedRequest
	rootHTML string
	respond  func(r recordedRequest) (int, string)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Form: form, Header: r.Header.Clone()}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	if r.Method == http.MethodGet {
		io.WriteString(w, f.rootHTML)
		return
	}
	status, text := http.StatusOK, ""
	if f.respond != nil {
		status, text = f.respond(rec)
	}
	w.WriteHeader(status)
	io.WriteString(w, text)
}

func (f *fakeService) posts() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.Method == http.MethodPost {
			out = append(out, r)
		}
	}
	return out
}

func newTestClient(t *testing.T, svc *fakeService, creds Credentials) *Client {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	return NewClient(NewSession(creds, ""), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestCallRefreshesTokenLazily(t *testing.T) {
	svc := &fakeService{
		rootHTML: `{"SNlM0e":"fresh-token","cfb2h":"boq_live"}`,
		respond: func(r recordedRequest) (int, string) {
			return 200, batchResponse(t, `[[["Nb",null,"aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"]]]`)
		},
	}
	c := newTestClient(t, svc, Credentials{Cookies: "SID=abc", SessionID: "sid-1"})

	payload, ok, err := c.Call(context.Background(), MethodListNotebooks, "", []interface{}{nil, 2})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !ok {
		t.Fatal("expected payload")
	}
	if payload.Get("0.0.0").String() != "Nb" {
		t.Errorf("payload = %s", payload.Raw)
	}

	posts := svc.posts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	p := posts[0]
	if p.Path != batchPath {
		t.Errorf("path = %s", p.Path)
	}
	checks := map[string]string{
		"rpcids":      "wXbhsf",
		"source-path": "/",
		"bl":          "boq_live",
		"hl":          "en",
		"_reqid":      "200000",
		"rt":          "c",
		"f.sid":       "sid-1",
	}
	for k, want := range checks {
		if got := p.Query.Get(k); got != want {
			t.Errorf("query %s = %q, want %q", k, got, want)
		}
	}
	if p.Form.Get("at") != "fresh-token" {
		t.Errorf("at = %q", p.Form.Get("at"))
	}
	if p.Header.Get("Cookie") != "SID=abc" {
		t.Errorf("cookie header = %q", p.Header.Get("Cookie"))
	}
	if p.Header.Get("X-Goog-AuthUser") != "0" {
		t.Errorf("missing X-Goog-AuthUser")
	}
	if !strings.HasPrefix(p.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		t.Errorf("content type = %q", p.Header.Get("Content-Type"))
	}
}

func TestCallSkipsRefreshWithToken(t *testing.T) {
	svc := &fakeService{respond: func(recordedRequest) (int, string) { return 200, ")]}'\n" }}
	c := newTestClient(t, svc, Credentials{Cookies: "SID=abc", CSRFToken: "given"})

	_, ok, err := c.Call(context.Background(), MethodGetNotebook, NotebookPath("nb1"), []interface{}{"nb1"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ok {
		t.Error("empty response should decode to no data")
	}
	if len(svc.requests) != 1 || svc.requests[0].Method != http.MethodPost {
		t.Fatalf("expected only the POST, got %+v", svc.requests)
	}
	if got := svc.requests[0].Query.Get("source-path"); got != "/notebook/nb1" {
		t.Errorf("source-path = %q", got)
	}
	if _, present := svc.requests[0].Query["f.sid"]; present {
		t.Error("f.sid should be omitted without a session id")
	}
}

func TestRefreshWithoutTokenIsAuthError(t *testing.T) {
	svc := &fakeService{rootHTML: "<html>Sign in</html>"}
	c := newTestClient(t, svc, Credentials{Cookies: "expired"})

	_, _, err := c.Call(context.Background(), MethodListNotebooks, "/", []interface{}{nil, 2})
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if len(svc.posts()) != 0 {
		t.Error("no rpc should be sent without a token")
	}
}

func TestCallNon2xxIsTransportError(t *testing.T) {
	svc := &fakeService{respond: func(recordedRequest) (int, string) { return 400, "bad request" }}
	c := newTestClient(t, svc, Credentials{CSRFToken: "t"})

	var seen []Exchange
	c.observers = append(c.observers, ObserverFunc(func(e Exchange) { seen = append(seen, e) }))

	_, _, err := c.Call(context.Background(), MethodDeleteNotebook, "/", []interface{}{})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != 400 || te.Body != "bad request" || te.Method != "WWINqb" {
		t.Errorf("transport error = %+v", te)
	}
	if len(seen) != 1 || seen[0].StatusCode != 400 || seen[0].Err == nil {
		t.Errorf("observer saw %+v", seen)
	}
}

func TestQueryReturnsRawText(t *testing.T) {
	svc := &fakeService{respond: func(recordedRequest) (int, string) { return 200, ")]}'\n[[\"wrb.fr\",null,\"[[\\\"answer\\\"]]\"]]" }}
	c := newTestClient(t, svc, Credentials{CSRFToken: "t"})

	text, err := c.Query(context.Background(), []interface{}{[]interface{}{}, "q", nil, []interface{}{2, nil, []int{1}}, "conv"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !strings.Contains(text, "answer") {
		t.Errorf("text = %q", text)
	}
	p := svc.posts()[0]
	if !strings.HasSuffix(p.Path, "GenerateFreeFormStreamed") {
		t.Errorf("path = %s", p.Path)
	}
	if p.Query.Get("rpcids") != "" || p.Query.Get("source-path") != "" {
		t.Errorf("query endpoint should not carry rpcids/source-path: %v", p.Query)
	}
	if !strings.HasPrefix(p.Form.Get("f.req"), "[null,") {
		t.Errorf("f.req = %s", p.Form.Get("f.req"))
	}
}
