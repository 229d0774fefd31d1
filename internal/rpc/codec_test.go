package rpc

import (
	"net/url"
	"strings"
	"testing"
)

// batchResponse wraps payloadJSON in a realistic batchexecute response.
func batchResponse(t *testing.T, payloadJSON string) string {
	t.Helper()
	frame, err := MarshalCompact([]interface{}{[]interface{}{"wrb.fr", "wXbhsf", payloadJSON, nil, nil, nil, "generic"}})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return ")]}'\n\n" + "1234\n" + frame + "\n57\n[[\"di\",42],[\"af.httprm\",41,\"123\",7]]\n"
}

func TestEncodeBatch(t *testing.T) {
	body, err := EncodeBatch("wXbhsf", []interface{}{nil, 2}, "tok<en>")
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}

	form, err := url.ParseQuery(body)
	if err != nil {
		t.Fatalf("body is not form encoded: %v", err)
	}
	want := `[[["wXbhsf","[null,2]",null,"generic"]]]`
	if got := form.Get("f.req"); got != want {
		t.Errorf("f.req = %s, want %s", got, want)
	}
	if got := form.Get("at"); got != "tok<en>" {
		t.Errorf("at = %q, want %q", got, "tok<en>")
	}
}

func TestEncodeBatchWithoutToken(t *testing.T) {
	body, err := EncodeBatch("rLM1Ne", []interface{}{"nb"}, "")
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if strings.Contains(body, "at=") {
		t.Errorf("body should not carry a token: %s", body)
	}
	form, _ := url.ParseQuery(body)
	if !strings.Contains(form.Get("f.req"), "rLM1Ne") {
		t.Errorf("f.req missing method id: %s", form.Get("f.req"))
	}
}

func TestEncodeQuery(t *testing.T) {
	body, err := EncodeQuery([]interface{}{[]interface{}{}, "what?", nil}, "tok")
	if err != nil {
		t.Fatalf("EncodeQuery: %v", err)
	}
	form, _ := url.ParseQuery(body)
	want := `[null,"[[],\"what?\",null]"]`
	if got := form.Get("f.req"); got != want {
		t.Errorf("f.req = %s, want %s", got, want)
	}
}

func TestMarshalCompactKeepsHTML(t *testing.T) {
	got, err := MarshalCompact([]string{"a<b>&c"})
	if err != nil {
		t.Fatal(err)
	}
	if got != `["a<b>&c"]` {
		t.Errorf("got %s", got)
	}
}

func TestDecode(t *testing.T) {
	t.Run("finds wrb.fr frame", func(t *testing.T) {
		payload, ok := Decode(batchResponse(t, `[["Title",null,"id"],5]`))
		if !ok {
			t.Fatal("expected payload")
		}
		if got := payload.Get("0.2").String(); got != "id" {
			t.Errorf("payload[0][2] = %q", got)
		}
		if got := payload.Get("1").Int(); got != 5 {
			t.Errorf("payload[1] = %d", got)
		}
	})

	t.Run("no marker", func(t *testing.T) {
		if _, ok := Decode(")]}'\n\n12\n[[\"di\",1]]\n"); ok {
			t.Error("expected no payload")
		}
	})

	t.Run("garbage lines are skipped", func(t *testing.T) {
		raw := "not json\n{{{\n" + strings.TrimPrefix(batchResponse(t, `["ok"]`), ")]}'")
		payload, ok := Decode(raw)
		if !ok || payload.Get("0").String() != "ok" {
			t.Errorf("got ok=%v payload=%s", ok, payload.Raw)
		}
	})

	t.Run("null payload", func(t *testing.T) {
		if _, ok := Decode(batchResponse(t, "null")); ok {
			t.Error("null payload should report no data")
		}
	})

	t.Run("non-string payload slot", func(t *testing.T) {
		if _, ok := Decode(")]}'\n[[\"wrb.fr\",\"x\",null]]\n"); ok {
			t.Error("expected no payload")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, ok := Decode(""); ok {
			t.Error("expected no payload")
		}
	})
}
