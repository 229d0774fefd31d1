package rpc

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	xssiPrefix    = ")]}'"
	responseTag   = "wrb.fr"
	genericMarker = "generic"
)

// MarshalCompact encodes v the way the browser's JSON.stringify does:
// no whitespace and no HTML escaping of <, > and &.
func MarshalCompact(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// EncodeBatch builds the form body for a batchexecute call:
// f.req=[[[methodID, paramsJSON, null, "generic"]]] plus at=<token> when a
// token is present.
func EncodeBatch(methodID string, params interface{}, csrfToken string) (string, error) {
	paramsJSON, err := MarshalCompact(params)
	if err != nil {
		return "", err
	}
	envelope := []interface{}{[]interface{}{[]interface{}{methodID, paramsJSON, nil, genericMarker}}}
	return encodeForm(envelope, csrfToken)
}

// EncodeQuery builds the flatter body used by the streaming query endpoint:
// f.req=[null, paramsJSON].
func EncodeQuery(params interface{}, csrfToken string) (string, error) {
	paramsJSON, err := MarshalCompact(params)
	if err != nil {
		return "", err
	}
	return encodeForm([]interface{}{nil, paramsJSON}, csrfToken)
}

func encodeForm(envelope interface{}, csrfToken string) (string, error) {
	fReq, err := MarshalCompact(envelope)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("f.req=")
	b.WriteString(url.QueryEscape(fReq))
	if csrfToken != "" {
		b.WriteString("&at=")
		b.WriteString(url.QueryEscape(csrfToken))
	}
	b.WriteString("&")
	return b.String(), nil
}

// Decode extracts the payload of the first "wrb.fr" frame in a batch
// response. Lines that are not JSON (length prefixes, partial frames) are
// skipped. It never fails: ok is false when no frame is found or the frame
// carries JSON null.
func Decode(raw string) (payload gjson.Result, ok bool) {
	raw = strings.TrimPrefix(raw, xssiPrefix)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !gjson.Valid(line) {
			continue
		}
		frames := gjson.Parse(line)
		if !frames.IsArray() {
			continue
		}
		for _, item := range frames.Array() {
			if !item.IsArray() || item.Get("0").String() != responseTag {
				continue
			}
			inner := item.Get("2")
			if inner.Type != gjson.String || !gjson.Valid(inner.Str) {
				continue
			}
			p := gjson.Parse(inner.Str)
			if p.Type == gjson.Null {
				return gjson.Result{}, false
			}
			return p, true
		}
	}
	return gjson.Result{}, false
}
