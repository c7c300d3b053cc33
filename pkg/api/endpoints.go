package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

var (
	endpointCurrentUser      = endpoint{http.MethodGet, "/user"}
	endpointAuthURL          = endpoint{http.MethodGet, "/auth/github"}
	endpointLogout           = endpoint{http.MethodPost, "/auth/logout"}
	endpointRepositories     = endpoint{http.MethodGet, "/github/repositories"}
	endpointRepositoryFiles  = endpoint{http.MethodGet, "/github/repositories/{owner}/{repo}/files"}
	endpointRepositoryFile   = endpoint{http.MethodGet, "/github/repositories/{owner}/{repo}/content"}
	endpointChat             = endpoint{http.MethodPost, "/chatbot/chat"}
	endpointExplain          = endpoint{http.MethodPost, "/chatbot/explain"}
	endpointRemediate        = endpoint{http.MethodPost, "/chatbot/remediate"}
	endpointAsk              = endpoint{http.MethodPost, "/chatbot/ask"}
	endpointAnalyze          = endpoint{http.MethodPost, "/code/analyze"}
	endpointQuickScan        = endpoint{http.MethodPost, "/code/quick-scan"}
	endpointCompare          = endpoint{http.MethodPost, "/code/compare"}
	endpointGenerateWorkflow = endpoint{http.MethodPost, "/workflow/ai-generate"}
	endpointHealth           = endpoint{http.MethodGet, "/health"}
)

func repoPath(owner, repo, suffix string) string {
	return "/github/repositories/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + suffix
}

// CurrentUser fetches the authenticated principal. A response without a
// user record returns ErrEmptyPayload.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, endpointCurrentUser, endpointCurrentUser.route, nil, &user); err != nil {
		return nil, err
	}
	if user.IsZero() {
		return nil, ErrEmptyPayload
	}
	return &user, nil
}

// AuthorizationURL asks the backend where to send the user for OAuth.
func (c *Client) AuthorizationURL(ctx context.Context) (AuthURL, error) {
	var out AuthURL
	err := c.do(ctx, endpointAuthURL, endpointAuthURL.route, nil, &out)
	return out, err
}

// Logout notifies the backend that the session is ending.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, endpointLogout, endpointLogout.route, nil, nil)
}

// ListRepositories returns the upstream repository records unnormalized.
// A payload that is not an array yields an empty list.
func (c *Client) ListRepositories(ctx context.Context) ([]RawRepository, error) {
	raw, err := c.doRaw(ctx, endpointRepositories, endpointRepositories.route, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[RawRepository](raw), nil
}

// ListRepositoryFiles returns the file listing of owner/repo.
func (c *Client) ListRepositoryFiles(ctx context.Context, owner, repo string) ([]RepoFile, error) {
	raw, err := c.doRaw(ctx, endpointRepositoryFiles, repoPath(owner, repo, "/files"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[RepoFile](raw), nil
}

// FileContent fetches one file of owner/repo.
func (c *Client) FileContent(ctx context.Context, owner, repo, path string) (FileContent, error) {
	var out FileContent
	if strings.TrimSpace(path) == "" {
		return out, verrors.New(verrors.ErrCodeInvalidInput, "File path required")
	}
	p := repoPath(owner, repo, "/content") + "?path=" + url.QueryEscape(path)
	err := c.do(ctx, endpointRepositoryFile, p, nil, &out)
	return out, err
}

// Chat sends one message with the prior conversation.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if req.ConversationHistory == nil {
		req.ConversationHistory = []ChatMessage{}
	}
	var out ChatResponse
	err := c.do(ctx, endpointChat, endpointChat.route, req, &out)
	return out, err
}

// ExplainVulnerability asks for an explanation of a vulnerability class.
func (c *Client) ExplainVulnerability(ctx context.Context, req ExplainRequest) (Explanation, error) {
	var out Explanation
	err := c.do(ctx, endpointExplain, endpointExplain.route, req, &out)
	return out, err
}

// GetRemediation asks for remediation steps.
func (c *Client) GetRemediation(ctx context.Context, req RemediationRequest) (Remediation, error) {
	var out Remediation
	err := c.do(ctx, endpointRemediate, endpointRemediate.route, req, &out)
	return out, err
}

// AskQuestion asks a free-form security question.
func (c *Client) AskQuestion(ctx context.Context, req QuestionRequest) (Answer, error) {
	var out Answer
	err := c.do(ctx, endpointAsk, endpointAsk.route, req, &out)
	return out, err
}

// AnalyzeCode runs the full AI analysis.
func (c *Client) AnalyzeCode(ctx context.Context, req AnalyzeRequest) (Analysis, error) {
	var out Analysis
	err := c.do(ctx, endpointAnalyze, endpointAnalyze.route, req, &out)
	return out, err
}

// QuickScan runs the pattern-only scan.
func (c *Client) QuickScan(ctx context.Context, req AnalyzeRequest) (ScanResult, error) {
	var out ScanResult
	err := c.do(ctx, endpointQuickScan, endpointQuickScan.route, req, &out)
	return out, err
}

// CompareCode reports how similar two snippets are.
func (c *Client) CompareCode(ctx context.Context, req CompareRequest) (Comparison, error) {
	var out Comparison
	err := c.do(ctx, endpointCompare, endpointCompare.route, req, &out)
	return out, err
}

// GenerateWorkflow turns a prompt into a workflow definition. The backend
// answers with the definition itself, not an envelope, so the body is
// returned verbatim after checking it is JSON.
func (c *Client) GenerateWorkflow(ctx context.Context, prompt string) (json.RawMessage, error) {
	body := map[string]string{"prompt": prompt}
	raw, err := c.doRaw(ctx, endpointGenerateWorkflow, endpointGenerateWorkflow.route, body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	if !json.Valid(raw) {
		return nil, verrors.New(verrors.ErrCodeMalformedResponse, "workflow definition is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// Health checks backend liveness. It needs no session.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, endpointHealth, endpointHealth.route, nil, &out)
	return out, err
}
