package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/domain"
	"github.com/lai-prep-bridge/internal/history"
	"github.com/lai-prep-bridge/internal/report"
	"github.com/lai-prep-bridge/internal/service"
)

// AssessPatientInput is the argument of assess_patient.
type AssessPatientInput struct {
	Patient    map[string]any `json:"patient" jsonschema:"flat patient record: population, age, current_prep_status, barriers, healthcare_setting, insurance_status, recent_hiv_test, transportation_access, childcare_needs"`
	ConfigPath string         `json:"config_path,omitempty" jsonschema:"configuration file; defaults to the server setting or the standard search path"`
	UseLogit   *bool          `json:"use_logit,omitempty" jsonschema:"aggregate barriers in log-odds space"`
	Report     bool           `json:"report,omitempty" jsonschema:"also return the human-readable clinical report"`
	Save       bool           `json:"save,omitempty" jsonschema:"store the assessment in the local history"`
}

// ValidateConfigInput is the argument of validate_config.
type ValidateConfigInput struct {
	ConfigPath string `json:"config_path,omitempty" jsonschema:"configuration file to validate"`
}

// ListInterventionsInput is the argument of list_interventions.
type ListInterventionsInput struct {
	ConfigPath string `json:"config_path,omitempty" jsonschema:"configuration file"`
	Population string `json:"population,omitempty" jsonschema:"only interventions applicable to this population key"`
}

// ServerStatsInput is the argument of server_stats. It takes no fields.
type ServerStatsInput struct{}

// ServerStats is the server_stats result.
type ServerStats struct {
	RateLimit   RateLimitStats    `json:"rate_limit"`
	ConfigCache config.CacheStats `json:"config_cache"`
	History     bool              `json:"history"`
}

// InterventionInfo is one entry of the list_interventions result.
type InterventionInfo struct {
	Key                      string   `json:"key"`
	Name                     string   `json:"name"`
	Improvement              float64  `json:"improvement"`
	EvidenceLevel            string   `json:"evidence_level"`
	CostLevel                string   `json:"cost_level"`
	ImplementationComplexity string   `json:"implementation_complexity"`
	Mechanisms               []string `json:"mechanisms"`
	AddressesBarriers        []string `json:"addresses_barriers,omitempty"`
	ApplicablePopulations    []string `json:"applicable_populations,omitempty"`
}

func (s *Server) assessPatient(ctx context.Context, _ *mcp.CallToolRequest, in AssessPatientInput) (*mcp.CallToolResult, any, error) {
	if denied := s.allow(ToolAssessPatient); denied != nil {
		return denied, nil, nil
	}

	cfg, err := s.cache.Get(s.configPath(in.ConfigPath))
	if err != nil {
		return errorResult(err), nil, nil
	}

	profile, err := domain.ParsePatient(in.Patient)
	if err != nil {
		return errorResult(err), nil, nil
	}

	useLogit := s.settings.UseLogit
	if in.UseLogit != nil {
		useLogit = *in.UseLogit
	}
	engine, err := service.NewEngine(cfg, s.logger, service.WithLogit(useLogit))
	if err != nil {
		return errorResult(err), nil, nil
	}

	assessment, err := engine.Assess(profile)
	if err != nil {
		return errorResult(err), nil, nil
	}
	doc := engine.Export(profile, assessment, s.now())

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode assessment: %w", err)
	}
	content := []mcp.Content{&mcp.TextContent{Text: string(data)}}

	if in.Report {
		content = append(content, &mcp.TextContent{Text: report.Text(cfg, engine.Method(), profile, assessment)})
	}

	if in.Save {
		id, err := s.save(ctx, profile, assessment, doc)
		if err != nil {
			return errorResult(err), nil, nil
		}
		content = append(content, &mcp.TextContent{Text: "Saved to history: " + id})
	}

	s.logger.WithFields(logrus.Fields{
		"tool":       ToolAssessPatient,
		"population": profile.Population,
		"risk_level": assessment.RiskLabel,
		"saved":      in.Save,
	}).Info("Tool call completed")

	return &mcp.CallToolResult{Content: content}, nil, nil
}

func (s *Server) validateConfig(_ context.Context, _ *mcp.CallToolRequest, in ValidateConfigInput) (*mcp.CallToolResult, any, error) {
	if denied := s.allow(ToolValidateConfig); denied != nil {
		return denied, nil, nil
	}

	path := s.configPath(in.ConfigPath)
	if path == "" {
		found, err := config.Find()
		if err != nil {
			return errorResult(err), nil, nil
		}
		path = found
	}

	r := config.Validate(path)
	// the file was just re-read; make the next assessment pick it up too
	s.cache.Invalidate(path)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode report: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tool":     ToolValidateConfig,
		"path":     path,
		"valid":    r.Valid(),
		"errors":   len(r.Errors),
		"warnings": len(r.Warnings),
	}).Info("Tool call completed")

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: !r.Valid(),
	}, nil, nil
}

func (s *Server) listInterventions(_ context.Context, _ *mcp.CallToolRequest, in ListInterventionsInput) (*mcp.CallToolResult, any, error) {
	if denied := s.allow(ToolListInterventions); denied != nil {
		return denied, nil, nil
	}

	cfg, err := s.cache.Get(s.configPath(in.ConfigPath))
	if err != nil {
		return errorResult(err), nil, nil
	}

	if in.Population != "" {
		if _, err := cfg.Population(in.Population); err != nil {
			return errorResult(err), nil, nil
		}
	}

	infos := Interventions(cfg, in.Population)
	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode interventions: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) serverStats(_ context.Context, _ *mcp.CallToolRequest, _ ServerStatsInput) (*mcp.CallToolResult, any, error) {
	if denied := s.allow(ToolServerStats); denied != nil {
		return denied, nil, nil
	}

	data, err := json.MarshalIndent(ServerStats{
		RateLimit:   s.RateLimitStats(),
		ConfigCache: s.CacheStats(),
		History:     s.history != nil,
	}, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode stats: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// Interventions lists the configured interventions in file order. A
// non-empty population keeps only those applicable to it.
func Interventions(cfg *domain.Configuration, population string) []InterventionInfo {
	infos := make([]InterventionInfo, 0, cfg.Interventions.Len())
	for _, key := range cfg.Interventions.Keys() {
		iv, _ := cfg.Interventions.Get(key)
		if population != "" && !iv.AppliesTo(population) {
			continue
		}
		infos = append(infos, InterventionInfo{
			Key:                      key,
			Name:                     iv.Name,
			Improvement:              iv.Improvement,
			EvidenceLevel:            iv.EvidenceLevel,
			CostLevel:                iv.CostLevel,
			ImplementationComplexity: iv.ImplementationComplexity,
			Mechanisms:               service.Mechanisms(key),
			AddressesBarriers:        iv.AddressesBarriers,
			ApplicablePopulations:    iv.ApplicablePopulations,
		})
	}
	return infos
}

func (s *Server) save(ctx context.Context, profile domain.PatientProfile, a *domain.Assessment, doc *report.Document) (string, error) {
	if s.history == nil {
		return "", fmt.Errorf("history is not enabled on this server")
	}
	rec, err := history.NewRecord(profile, a, doc)
	if err != nil {
		return "", err
	}
	if err := s.history.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to save assessment: %w", err)
	}
	return rec.ID, nil
}

func (s *Server) configPath(requested string) string {
	if requested != "" {
		return requested
	}
	return s.settings.ConfigPath
}

// allow returns a tool error result when the call is rate limited.
func (s *Server) allow(tool string) *mcp.CallToolResult {
	if s.limiter.Allow(tool) {
		return nil
	}
	return errorResult(fmt.Errorf("rate limit exceeded for %s, retry shortly", tool))
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
