package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/opstate"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
)

// MsgPromptRequired is the soft error for a blank prompt.
const MsgPromptRequired = "Prompt is required"

// API is the backend call the generator needs.
type API interface {
	GenerateWorkflow(ctx context.Context, prompt string) (json.RawMessage, error)
}

// Generator turns prompts into workflow definitions.
type Generator struct {
	api    API
	logger *logging.Logger
	hub    *telemetry.Hub
	state  opstate.State

	mu   sync.RWMutex
	last json.RawMessage
}

// NewGenerator returns a workflow generator.
func NewGenerator(client API, logger *logging.Logger, hub *telemetry.Hub) *Generator {
	return &Generator{api: client, logger: logger, hub: hub}
}

func (g *Generator) Loading() bool       { return g.state.Loading() }
func (g *Generator) Err() (string, bool) { return g.state.Err() }
func (g *Generator) ClearError()         { g.state.ClearError() }

// Generate asks the backend for a workflow. A blank prompt is rejected
// locally without a request.
func (g *Generator) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	if strings.TrimSpace(prompt) == "" {
		g.state.SetError(MsgPromptRequired)
		return nil, verrors.New(verrors.ErrCodeInvalidInput, MsgPromptRequired)
	}
	return opstate.Run(&g.state, func() (json.RawMessage, error) {
		raw, err := g.api.GenerateWorkflow(ctx, prompt)
		if err != nil {
			_ = g.logger.Warn(logging.CategoryAssistant, "generate_failed", api.ErrorMessage(err), nil)
			return nil, err
		}
		g.mu.Lock()
		g.last = raw
		g.mu.Unlock()

		details := map[string]any{"bytes": len(raw)}
		if sum, err := Summarize(raw); err == nil {
			details["name"] = sum.Name
			details["nodes"] = sum.Nodes
			details["edges"] = sum.Edges
		}
		_ = g.logger.Info(logging.CategoryAssistant, "workflow_generated", "", details)
		g.hub.Emit(telemetry.EventWorkflowGenerated, details)
		return raw, nil
	})
}

// Workflow returns the last generated definition, or nil.
func (g *Generator) Workflow() json.RawMessage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}

// Props binds a sheet to this generator. IsGenerating is a snapshot and
// must be refreshed with SetProps while a generation runs.
func (g *Generator) Props(open bool, onOpenChange func(bool)) Props {
	return Props{
		Open:         open,
		OnOpenChange: onOpenChange,
		OnGenerate: func(ctx context.Context, prompt string) error {
			_, err := g.Generate(ctx, prompt)
			return err
		},
		IsGenerating: g.Loading(),
	}
}

// Summary is the shape of a generated workflow, for display.
type Summary struct {
	Name     string
	Nodes    int
	Edges    int
	Schedule string
}

// Summarize reads the node graph out of a workflow definition. Unknown
// fields are ignored.
func Summarize(raw json.RawMessage) (Summary, error) {
	var doc struct {
		Name              string            `json:"name"`
		Nodes             []json.RawMessage `json:"nodes"`
		Edges             []json.RawMessage `json:"edges"`
		ScheduleFrequency string            `json:"schedule_frequency"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Summary{}, verrors.Wrap(err, verrors.ErrCodeMalformedResponse, "decode workflow")
	}
	return Summary{
		Name:     doc.Name,
		Nodes:    len(doc.Nodes),
		Edges:    len(doc.Edges),
		Schedule: doc.ScheduleFrequency,
	}, nil
}
