// Package chatbot exposes the security assistant endpoints: free chat,
// vulnerability explanations, remediation guidance and general questions.
package chatbot

import (
	"context"
	"strings"
	"sync"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/opstate"
)

// API is the subset of the backend client the chatbot calls.
type API interface {
	Chat(ctx context.Context, req api.ChatRequest) (api.ChatResponse, error)
	ExplainVulnerability(ctx context.Context, req api.ExplainRequest) (api.Explanation, error)
	GetRemediation(ctx context.Context, req api.RemediationRequest) (api.Remediation, error)
	AskQuestion(ctx context.Context, req api.QuestionRequest) (api.Answer, error)
}

// Service wraps each endpoint with a shared loading flag and last error.
type Service struct {
	api    API
	logger *logging.Logger
	state  opstate.State
}

// New returns a chatbot service.
func New(client API, logger *logging.Logger) *Service {
	return &Service{api: client, logger: logger}
}

func (s *Service) Loading() bool       { return s.state.Loading() }
func (s *Service) Err() (string, bool) { return s.state.Err() }
func (s *Service) ClearError()         { s.state.ClearError() }

// Chat sends one message with the prior turns. A nil history is sent as
// an empty list.
func (s *Service) Chat(ctx context.Context, message string, history []api.ChatMessage) (api.ChatResponse, error) {
	return opstate.Run(&s.state, func() (api.ChatResponse, error) {
		resp, err := s.api.Chat(ctx, api.ChatRequest{Message: message, ConversationHistory: history})
		s.logCall("chat", err)
		return resp, err
	})
}

// ExplainVulnerability describes a vulnerability class.
func (s *Service) ExplainVulnerability(ctx context.Context, req api.ExplainRequest) (api.Explanation, error) {
	return opstate.Run(&s.state, func() (api.Explanation, error) {
		resp, err := s.api.ExplainVulnerability(ctx, req)
		s.logCall("explain", err)
		return resp, err
	})
}

// GetRemediation returns fix guidance for a vulnerability class.
func (s *Service) GetRemediation(ctx context.Context, req api.RemediationRequest) (api.Remediation, error) {
	return opstate.Run(&s.state, func() (api.Remediation, error) {
		resp, err := s.api.GetRemediation(ctx, req)
		s.logCall("remediate", err)
		return resp, err
	})
}

// AskQuestion answers a free-form security question.
func (s *Service) AskQuestion(ctx context.Context, req api.QuestionRequest) (api.Answer, error) {
	return opstate.Run(&s.state, func() (api.Answer, error) {
		resp, err := s.api.AskQuestion(ctx, req)
		s.logCall("ask", err)
		return resp, err
	})
}

func (s *Service) logCall(op string, err error) {
	if err != nil {
		_ = s.logger.Warn(logging.CategoryChat, op+"_failed", api.ErrorMessage(err), map[string]any{"op": op})
		return
	}
	_ = s.logger.Debug(logging.CategoryChat, op, "", nil)
}

// Conversation keeps the running history of an interactive chat.
type Conversation struct {
	svc *Service

	mu      sync.Mutex
	history []api.ChatMessage
	// MaxTurns bounds the history sent upstream; zero keeps everything.
	MaxTurns int
}

// NewConversation starts an empty conversation.
func NewConversation(svc *Service) *Conversation {
	return &Conversation{svc: svc}
}

// Send posts message with the history so far. Only successful exchanges
// are recorded.
func (c *Conversation) Send(ctx context.Context, message string) (api.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return api.ChatResponse{}, verrors.New(verrors.ErrCodeInvalidInput, "message is empty")
	}

	history := c.History()
	resp, err := c.svc.Chat(ctx, message, history)
	if err != nil {
		return resp, err
	}

	c.mu.Lock()
	c.history = append(c.history,
		api.ChatMessage{Role: api.RoleUser, Content: message},
		api.ChatMessage{Role: api.RoleAssistant, Content: resp.Response},
	)
	if c.MaxTurns > 0 && len(c.history) > 2*c.MaxTurns {
		c.history = append([]api.ChatMessage(nil), c.history[len(c.history)-2*c.MaxTurns:]...)
	}
	c.mu.Unlock()
	return resp, nil
}

// History returns a copy of the recorded turns.
func (c *Conversation) History() []api.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.ChatMessage(nil), c.history...)
}

// Reset forgets every turn.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}
