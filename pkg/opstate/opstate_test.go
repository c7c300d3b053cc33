package opstate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odvcencio/vulnpilot/pkg/api"
)

func TestRunSuccessClearsPriorError(t *testing.T) {
	var s State
	s.SetError("old")

	out, err := Run(&s, func() (int, error) {
		assert.True(t, s.Loading(), "loading during the call")
		_, has := s.Err()
		assert.False(t, has, "prior error cleared at start")
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.False(t, s.Loading())
	_, has := s.Err()
	assert.False(t, has)
}

func TestRunFailureRecordsAndReturns(t *testing.T) {
	var s State
	want := &api.StatusError{StatusCode: 500, ErrorField: "Failed to generate response"}

	_, err := Run(&s, func() (string, error) { return "", want })
	assert.Same(t, want, err, "error is re-raised unchanged")
	msg, has := s.Err()
	assert.True(t, has)
	assert.Equal(t, "Failed to generate response", msg)
	assert.False(t, s.Loading())

	s.ClearError()
	_, has = s.Err()
	assert.False(t, has)
}

func TestEndWithPlainError(t *testing.T) {
	var s State
	s.Begin()
	err := s.End(errors.New("boom"))
	assert.EqualError(t, err, "boom")
	msg, _ := s.Err()
	assert.Equal(t, "boom", msg)
}
