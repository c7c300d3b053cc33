// Package codeanalysis submits source code to the backend for AI analysis,
// pattern scans and similarity comparison.
package codeanalysis

import (
	"context"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/logging"
	"github.com/odvcencio/vulnpilot/pkg/opstate"
	"github.com/odvcencio/vulnpilot/pkg/telemetry"
)

// API is the subset of the backend client used here.
type API interface {
	AnalyzeCode(ctx context.Context, req api.AnalyzeRequest) (api.Analysis, error)
	QuickScan(ctx context.Context, req api.AnalyzeRequest) (api.ScanResult, error)
	CompareCode(ctx context.Context, req api.CompareRequest) (api.Comparison, error)
}

// Service tracks loading and the last error across its calls.
type Service struct {
	api    API
	logger *logging.Logger
	hub    *telemetry.Hub
	state  opstate.State
}

// New returns a code analysis service.
func New(client API, logger *logging.Logger, hub *telemetry.Hub) *Service {
	return &Service{api: client, logger: logger, hub: hub}
}

func (s *Service) Loading() bool       { return s.state.Loading() }
func (s *Service) Err() (string, bool) { return s.state.Err() }
func (s *Service) ClearError()         { s.state.ClearError() }

// AnalyzeCode runs the full AI analysis.
func (s *Service) AnalyzeCode(ctx context.Context, req api.AnalyzeRequest) (api.Analysis, error) {
	return opstate.Run(&s.state, func() (api.Analysis, error) {
		res, err := s.api.AnalyzeCode(ctx, req)
		if err != nil {
			_ = s.logger.Warn(logging.CategoryAnalysis, "analyze_failed", api.ErrorMessage(err), map[string]any{"filename": req.Filename})
			return res, err
		}
		s.hub.Emit(telemetry.EventAnalysisCompleted, map[string]any{
			"filename":            req.Filename,
			"language":            req.Language,
			"security_score":      res.SecurityScore,
			"vulnerability_count": res.VulnerabilityCount,
		})
		return res, nil
	})
}

// QuickScan runs the pattern-only scan.
func (s *Service) QuickScan(ctx context.Context, req api.AnalyzeRequest) (api.ScanResult, error) {
	return opstate.Run(&s.state, func() (api.ScanResult, error) {
		return s.quickScan(ctx, req)
	})
}

func (s *Service) quickScan(ctx context.Context, req api.AnalyzeRequest) (api.ScanResult, error) {
	res, err := s.api.QuickScan(ctx, req)
	if err != nil {
		_ = s.logger.Warn(logging.CategoryAnalysis, "quick_scan_failed", api.ErrorMessage(err), map[string]any{"filename": req.Filename})
		return res, err
	}
	s.hub.Emit(telemetry.EventScanCompleted, map[string]any{
		"filename":            req.Filename,
		"vulnerability_count": res.VulnerabilityCount,
		"security_score":      res.SecurityScore,
	})
	return res, nil
}

// CompareCode measures how similar two snippets are.
func (s *Service) CompareCode(ctx context.Context, req api.CompareRequest) (api.Comparison, error) {
	return opstate.Run(&s.state, func() (api.Comparison, error) {
		res, err := s.api.CompareCode(ctx, req)
		if err != nil {
			_ = s.logger.Warn(logging.CategoryAnalysis, "compare_failed", api.ErrorMessage(err), nil)
		}
		return res, err
	})
}
