package api

import (
	"bytes"
	"encoding/json"
	stderrors "errors"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

// Envelope is the backend's standard response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrEmptyPayload reports a response that carried no usable payload.
var ErrEmptyPayload = stderrors.New("response carried no payload")

// parseEnvelope reads the envelope fields of body when it is a JSON object.
// hasData reports whether the object contained a "data" key at all.
func parseEnvelope(body []byte) (env Envelope, hasData bool, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, false, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, false, false
	}
	_ = json.Unmarshal(fields["success"], &env.Success)
	_ = json.Unmarshal(fields["message"], &env.Message)
	_ = json.Unmarshal(fields["error"], &env.Error)
	env.Data, hasData = fields["data"]
	return env, hasData, true
}

// payloadOf returns the payload of a response body: the "data" member when
// the body is an object that has one, otherwise the body itself.
func payloadOf(body []byte) []byte {
	if env, hasData, ok := parseEnvelope(body); ok && hasData {
		return bytes.TrimSpace(env.Data)
	}
	return bytes.TrimSpace(body)
}

// decodePayload normalizes a response body into out. Every typed call goes
// through here so call sites never re-derive the nesting.
func decodePayload(body []byte, out any) error {
	payload := payloadOf(body)
	if len(payload) == 0 || string(payload) == "null" {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return verrors.Wrap(err, verrors.ErrCodeMalformedResponse, "decode response payload")
	}
	return nil
}

// decodeList decodes a payload expected to be an array. Anything else,
// including an absent payload, yields an empty list.
func decodeList[T any](body []byte) []T {
	payload := payloadOf(body)
	if len(payload) == 0 || payload[0] != '[' {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}
