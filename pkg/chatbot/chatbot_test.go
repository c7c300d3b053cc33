package chatbot

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

type fakeAPI struct {
	svc         *Service
	sawLoading  []bool
	chatReqs    []api.ChatRequest
	err         error
	reply       string
	explainReq  api.ExplainRequest
	remediation api.RemediationRequest
	question    api.QuestionRequest
}

func (f *fakeAPI) observe() {
	if f.svc != nil {
		f.sawLoading = append(f.sawLoading, f.svc.Loading())
	}
}

func (f *fakeAPI) Chat(_ context.Context, req api.ChatRequest) (api.ChatResponse, error) {
	f.observe()
	f.chatReqs = append(f.chatReqs, req)
	if f.err != nil {
		return api.ChatResponse{}, f.err
	}
	return api.ChatResponse{Response: f.reply}, nil
}

func (f *fakeAPI) ExplainVulnerability(_ context.Context, req api.ExplainRequest) (api.Explanation, error) {
	f.observe()
	f.explainReq = req
	return api.Explanation{VulnerabilityType: req.VulnerabilityType, Explanation: "untrusted input in queries"}, f.err
}

func (f *fakeAPI) GetRemediation(_ context.Context, req api.RemediationRequest) (api.Remediation, error) {
	f.observe()
	f.remediation = req
	return api.Remediation{VulnerabilityType: req.VulnerabilityType, Remediation: "use parameters"}, f.err
}

func (f *fakeAPI) AskQuestion(_ context.Context, req api.QuestionRequest) (api.Answer, error) {
	f.observe()
	f.question = req
	return api.Answer{Question: req.Question, Answer: "rotate keys", Category: req.Category}, f.err
}

func newService(err error) (*Service, *fakeAPI) {
	fake := &fakeAPI{err: err, reply: "hello"}
	svc := New(fake, nil)
	fake.svc = svc
	return svc, fake
}

func TestCallsToggleLoading(t *testing.T) {
	ctx := context.Background()
	svc, fake := newService(nil)

	_, err := svc.Chat(ctx, "hi", nil)
	require.NoError(t, err)
	_, err = svc.ExplainVulnerability(ctx, api.ExplainRequest{VulnerabilityType: "sql_injection"})
	require.NoError(t, err)
	_, err = svc.GetRemediation(ctx, api.RemediationRequest{VulnerabilityType: "xss", Language: "go"})
	require.NoError(t, err)
	ans, err := svc.AskQuestion(ctx, api.QuestionRequest{Question: "how often rotate?", Category: "secrets"})
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true, true}, fake.sawLoading)
	assert.False(t, svc.Loading())
	assert.Equal(t, "rotate keys", ans.Answer)
	assert.Equal(t, "xss", fake.remediation.VulnerabilityType)
	assert.Equal(t, "secrets", fake.question.Category)
}

func TestFailureIsStoredAndReturned(t *testing.T) {
	backendErr := &api.StatusError{StatusCode: http.StatusServiceUnavailable, ErrorField: "AI service not configured"}
	svc, _ := newService(backendErr)

	_, err := svc.ExplainVulnerability(context.Background(), api.ExplainRequest{VulnerabilityType: "xss"})
	assert.ErrorIs(t, err, backendErr)
	assert.False(t, svc.Loading())
	msg, ok := svc.Err()
	assert.True(t, ok)
	assert.Equal(t, "AI service not configured", msg)

	svc.ClearError()
	_, ok = svc.Err()
	assert.False(t, ok)
}

func TestNextCallClearsPreviousError(t *testing.T) {
	svc, fake := newService(&api.StatusError{StatusCode: 500})
	_, _ = svc.Chat(context.Background(), "x", nil)
	_, ok := svc.Err()
	require.True(t, ok)

	fake.err = nil
	_, err := svc.Chat(context.Background(), "y", nil)
	require.NoError(t, err)
	_, ok = svc.Err()
	assert.False(t, ok)
}

func TestConversationRecordsSuccessfulTurns(t *testing.T) {
	ctx := context.Background()
	svc, fake := newService(nil)
	conv := NewConversation(svc)

	_, err := conv.Send(ctx, "first")
	require.NoError(t, err)
	fake.reply = "second reply"
	_, err = conv.Send(ctx, "second")
	require.NoError(t, err)

	require.Len(t, fake.chatReqs, 2)
	assert.Empty(t, fake.chatReqs[0].ConversationHistory)
	assert.Equal(t, []api.ChatMessage{
		{Role: api.RoleUser, Content: "first"},
		{Role: api.RoleAssistant, Content: "hello"},
	}, fake.chatReqs[1].ConversationHistory)
	assert.Len(t, conv.History(), 4)

	fake.err = &api.StatusError{StatusCode: 500}
	_, err = conv.Send(ctx, "third")
	assert.Error(t, err)
	assert.Len(t, conv.History(), 4, "failed turns are not recorded")

	conv.Reset()
	assert.Empty(t, conv.History())
}

func TestConversationRejectsBlankMessage(t *testing.T) {
	svc, fake := newService(nil)
	_, err := NewConversation(svc).Send(context.Background(), "   ")
	assert.True(t, verrors.IsCode(err, verrors.ErrCodeInvalidInput))
	assert.Empty(t, fake.chatReqs)
}

func TestConversationMaxTurns(t *testing.T) {
	svc, _ := newService(nil)
	conv := NewConversation(svc)
	conv.MaxTurns = 1
	for _, msg := range []string{"a", "b", "c"} {
		_, err := conv.Send(context.Background(), msg)
		require.NoError(t, err)
	}
	hist := conv.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "c", hist[0].Content)
}
