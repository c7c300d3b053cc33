package api

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

func TestErrorMessagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"error field wins", &StatusError{StatusCode: 400, ErrorField: "bad input", MessageField: "ignored"}, "bad input"},
		{"message field next", &StatusError{StatusCode: 404, MessageField: "User not found"}, "User not found"},
		{"transport text", &StatusError{StatusCode: 502}, "request failed with status code 502"},
		{"wrapped status", fmt.Errorf("list: %w", &StatusError{StatusCode: 403, ErrorField: "nope"}), "nope"},
		{"unreachable", verrors.Wrap(fmt.Errorf("%w: dial tcp", ErrUnreachable), verrors.ErrCodeUnreachable, "GET /user"), "no response from server - check your connection"},
		{"structured user message", verrors.New(verrors.ErrCodeInvalidInput, "raw").WithUserMessage("Pick a file"), "Pick a file"},
		{"structured message", verrors.New(verrors.ErrCodeInvalidInput, "File path required"), "File path required"},
		{"plain", stderrors.New("boom"), "boom"},
		{"blank", stderrors.New("  "), FallbackMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestStatusCodeClassification(t *testing.T) {
	tests := []struct {
		status int
		want   verrors.ErrorCode
	}{
		{401, verrors.ErrCodeUnauthorized},
		{403, verrors.ErrCodeForbidden},
		{404, verrors.ErrCodeNotFound},
		{500, verrors.ErrCodeBackendFault},
		{503, verrors.ErrCodeBackendFault},
		{409, verrors.ErrCodeRequestRejected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&StatusError{StatusCode: tt.status}).Code(), "status %d", tt.status)
	}
	assert.False(t, IsUnauthorized(stderrors.New("x")))
	assert.True(t, IsUnauthorized(fmt.Errorf("w: %w", &StatusError{StatusCode: 401})))
}

func TestDecodePayload(t *testing.T) {
	var v struct {
		URL string `json:"url"`
	}
	assert.NoError(t, decodePayload([]byte(`{"success":true,"data":{"url":"https://x"}}`), &v))
	assert.Equal(t, "https://x", v.URL)

	v.URL = ""
	assert.NoError(t, decodePayload([]byte(`{"url":"https://y"}`), &v))
	assert.Equal(t, "https://y", v.URL)

	assert.ErrorIs(t, decodePayload([]byte(" \n"), &v), ErrEmptyPayload)
	assert.ErrorIs(t, decodePayload([]byte(`null`), &v), ErrEmptyPayload)
	assert.ErrorIs(t, decodePayload([]byte(`{"data":null}`), &v), ErrEmptyPayload)
}

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	var u User
	assert.NoError(t, jsonUnmarshal(`{"id":12,"github_id":"gh-1","username":"a"}`, &u))
	assert.Equal(t, ID("12"), u.ID)
	assert.Equal(t, ID("gh-1"), u.GitHubID)

	assert.NoError(t, jsonUnmarshal(`{"id":null,"username":"a"}`, &u))
	assert.Equal(t, ID(""), u.ID)
	assert.False(t, u.IsZero())
	assert.True(t, (&User{}).IsZero())
	assert.True(t, (*User)(nil).IsZero())
}
