package rpc

import (
	"regexp"
	"sync"
)

// DefaultBuildLabel is sent as "bl" until a refresh scrapes the live one.
const DefaultBuildLabel = "boq_labs-tailwind-frontend_20260121.08_p0"

const requestIDStep = 100000

var (
	csrfPattern       = regexp.MustCompile(`"SNlM0e":"([^"]+)"`)
	buildLabelPattern = regexp.MustCompile(`"cfb2h":"([^"]+)"`)
	blFallbackPattern = regexp.MustCompile(`"bl":"([^"]+)"`)
)

// Credentials are what a caller hands over after logging in.
type Credentials struct {
	Cookies   string `json:"cookies"`
	CSRFToken string `json:"csrf_token,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Session is the mutable per-client state shared by every call: cookies,
// the anti-forgery token, the build label and the request counter.
type Session struct {
	mu         sync.Mutex
	cookies    string
	csrfToken  string
	sessionID  string
	buildLabel string
	requestID  int
}

// SessionState is a point-in-time copy of a Session.
type SessionState struct {
	Cookies    string
	CSRFToken  string
	SessionID  string
	BuildLabel string
	RequestID  int
}

// NewSession creates a session from credentials. An empty buildLabel selects
// DefaultBuildLabel.
func NewSession(creds Credentials, buildLabel string) *Session {
	if buildLabel == "" {
		buildLabel = DefaultBuildLabel
	}
	return &Session{
		cookies:    creds.Cookies,
		csrfToken:  creds.CSRFToken,
		sessionID:  creds.SessionID,
		buildLabel: buildLabel,
		requestID:  requestIDStep,
	}
}

// NextRequestID advances the counter and returns the new value.
func (s *Session) NextRequestID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestID += requestIDStep
	return s.requestID
}

// CSRFToken returns the current anti-forgery token (may be empty).
func (s *Session) CSRFToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfToken
}

// State returns a consistent copy of the session fields.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		Cookies:    s.cookies,
		CSRFToken:  s.csrfToken,
		SessionID:  s.sessionID,
		BuildLabel: s.buildLabel,
		RequestID:  s.requestID,
	}
}

// Credentials returns the credentials this session currently holds,
// including a refreshed token.
func (s *Session) Credentials() Credentials {
	st := s.State()
	return Credentials{Cookies: st.Cookies, CSRFToken: st.CSRFToken, SessionID: st.SessionID}
}

// applyTokens stores a scraped token and label. An empty label keeps the
// current one.
func (s *Session) applyTokens(csrf, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrfToken = csrf
	if label != "" {
		s.buildLabel = label
	}
}

// ExtractTokens scans the service root HTML for the anti-forgery token and
// the build label. Either may be empty when absent.
func ExtractTokens(html string) (csrf, label string) {
	if m := csrfPattern.FindStringSubmatch(html); len(m) == 2 {
		csrf = m[1]
	}
	if m := buildLabelPattern.FindStringSubmatch(html); len(m) == 2 {
		label = m[1]
	} else if m := blFallbackPattern.FindStringSubmatch(html); len(m) == 2 {
		label = m[1]
	}
	return csrf, label
}
