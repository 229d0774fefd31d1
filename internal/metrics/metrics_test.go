package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notebooklm-mcp-server/internal/rpc"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ex   rpc.Exchange
		want string
	}{
		{"decoded", rpc.Exchange{StatusCode: 200, Decoded: true}, OutcomeOK},
		{"no frame", rpc.Exchange{StatusCode: 200}, OutcomeEmpty},
		{"rejected", rpc.Exchange{StatusCode: 400, Err: errors.New("bad request")}, OutcomeHTTPError},
		{"unreachable", rpc.Exchange{Err: errors.New("dial tcp: refused")}, OutcomeNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.ex); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestObserversExposeSeries(t *testing.T) {
	RPCObserver{}.ObserveExchange(rpc.Exchange{Method: "metrics_probe", StatusCode: 200, Decoded: true, Duration: 20 * time.Millisecond})
	RPCObserver{}.ObserveExchange(rpc.Exchange{Method: "metrics_probe", StatusCode: 500, Err: errors.New("boom")})
	ObserveResearch("probe", "imported", 42*time.Second)
	ObservePollAttempts(4)

	body := scrape(t)
	for _, want := range []string{
		`notebooklm_rpc_requests_total{method="metrics_probe",outcome="ok"} 1`,
		`notebooklm_rpc_requests_total{method="metrics_probe",outcome="http_error"} 1`,
		`notebooklm_rpc_duration_seconds_count{method="metrics_probe"} 2`,
		`notebooklm_research_duration_seconds_count{outcome="imported",strategy="probe"} 1`,
		`notebooklm_poll_attempts_count`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
