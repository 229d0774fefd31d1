package rpc

import (
	"sync"
	"testing"
)

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantCSRF  string
		wantLabel string
	}{
		{
			name:      "both present",
			html:      `<script>WIZ_global_data = {"SNlM0e":"AJpM:123","cfb2h":"boq_x_1"};</script>`,
			wantCSRF:  "AJpM:123",
			wantLabel: "boq_x_1",
		},
		{
			name:      "bl fallback",
			html:      `{"SNlM0e":"tok","bl":"boq_y_2"}`,
			wantCSRF:  "tok",
			wantLabel: "boq_y_2",
		},
		{
			name: "nothing",
			html: `<html>sign in</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csrf, label := ExtractTokens(tt.html)
			if csrf != tt.wantCSRF {
				t.Errorf("csrf = %q, want %q", csrf, tt.wantCSRF)
			}
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
		})
	}
}

func TestSessionDefaults(t *testing.T) {
	s := NewSession(Credentials{Cookies: "SID=1"}, "")
	st := s.State()
	if st.BuildLabel != DefaultBuildLabel {
		t.Errorf("build label = %q", st.BuildLabel)
	}
	if st.RequestID != 100000 {
		t.Errorf("request id = %d", st.RequestID)
	}
}

func TestNextRequestIDStrictlyIncreases(t *testing.T) {
	s := NewSession(Credentials{}, "")

	const n = 50
	seen := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- s.NextRequestID()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int]bool{}
	for id := range seen {
		if unique[id] {
			t.Fatalf("duplicate request id %d", id)
		}
		unique[id] = true
	}
	if got := s.State().RequestID; got != 100000+n*100000 {
		t.Errorf("final counter = %d", got)
	}
}

func TestApplyTokensKeepsLabelWhenEmpty(t *testing.T) {
	s := NewSession(Credentials{}, "boq_custom")
	s.applyTokens("tok", "")
	st := s.State()
	if st.CSRFToken != "tok" || st.BuildLabel != "boq_custom" {
		t.Errorf("state = %+v", st)
	}
}

func TestMethodsOverrides(t *testing.T) {
	m, err := DefaultMethods().WithOverrides(map[string]string{"list_notebooks": "newID"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID(MethodListNotebooks) != "newID" {
		t.Errorf("override not applied")
	}
	if DefaultMethods().ID(MethodListNotebooks) != "wXbhsf" {
		t.Errorf("defaults mutated")
	}
	if _, err := DefaultMethods().WithOverrides(map[string]string{"bogus": "x"}); err == nil {
		t.Error("expected unknown method error")
	}
}
