package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is an identifier the backend may send as a JSON string or number.
type ID string

// UnmarshalJSON accepts "1", 1 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as text.
func (id ID) String() string { return string(id) }

// User is the cached projection of the authenticated principal. It is a
// display cache only and never proof of authentication.
type User struct {
	ID        ID     `json:"id"`
	GitHubID  ID     `json:"github_id,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// IsZero reports whether the record carries no identity at all.
func (u *User) IsZero() bool {
	return u == nil || (strings.TrimSpace(string(u.ID)) == "" && strings.TrimSpace(u.Username) == "")
}

// AuthURL is the OAuth authorization redirect the backend hands out.
type AuthURL struct {
	URL   string `json:"url"`
	State string `json:"state,omitempty"`
}

// RawRepository is one upstream repository record before normalization.
// Field names vary between backend versions, so it stays untyped here.
type RawRepository map[string]any

// RepoFile is one entry of a repository file listing.
type RepoFile struct {
	Name     string `json:"name,omitempty"`
	Path     string `json:"path"`
	Type     string `json:"type,omitempty"`
	Content  string `json:"content,omitempty"`
	IsBinary bool   `json:"isBinary,omitempty"`
}

// FileContent is a single file fetched from a repository.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is the body of the chat endpoint.
type ChatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ExplainRequest asks for an explanation of a vulnerability class.
type ExplainRequest struct {
	VulnerabilityType string `json:"vulnerability_type"`
	Context           string `json:"context,omitempty"`
}

// Explanation answers an ExplainRequest.
type Explanation struct {
	VulnerabilityType string `json:"vulnerability_type"`
	Explanation       string `json:"explanation"`
}

// RemediationRequest asks for fix guidance.
type RemediationRequest struct {
	VulnerabilityType string `json:"vulnerability_type"`
	CodeSnippet       string `json:"code_snippet,omitempty"`
	Language          string `json:"language,omitempty"`
}

// Remediation answers a RemediationRequest.
type Remediation struct {
	VulnerabilityType string `json:"vulnerability_type"`
	Remediation       string `json:"remediation"`
}

// QuestionRequest is a free-form security question.
type QuestionRequest struct {
	Question string `json:"question"`
	Category string `json:"category,omitempty"`
}

// Answer answers a QuestionRequest.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

// AnalyzeRequest is the body of analyze-code and quick-scan-code.
type AnalyzeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Filename string `json:"filename,omitempty"`
}

// Analysis is the result of a full AI code analysis.
type Analysis struct {
	Analysis           string   `json:"analysis"`
	Vulnerabilities    []string `json:"vulnerabilities"`
	SecurityScore      int      `json:"security_score"`
	Recommendations    string   `json:"recommendations"`
	VulnerabilityCount int      `json:"vulnerability_count"`
}

// ScanResult is the result of a pattern-only quick scan.
type ScanResult struct {
	Vulnerabilities    []string `json:"vulnerabilities"`
	VulnerabilityCount int      `json:"vulnerability_count"`
	SecurityScore      int      `json:"security_score"`
	ScanType           string   `json:"scan_type"`
}

// CompareRequest is the body of compare-code.
type CompareRequest struct {
	Code1     string `json:"code1"`
	Code2     string `json:"code2"`
	Language1 string `json:"language1"`
	Language2 string `json:"language2"`
}

// Comparison is the similarity report for two snippets.
type Comparison struct {
	Similarity        float64  `json:"similarity"`
	SimilarityPercent float64  `json:"similarity_percent"`
	IsDuplicate       bool     `json:"is_duplicate"`
	CommonKeywords    []string `json:"common_keywords"`
}

// Health is the backend liveness report.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}
