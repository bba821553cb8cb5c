// Package mcp exposes the bridge-period assessment over the Model Context
// Protocol on stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/history"
	"github.com/lai-prep-bridge/internal/report"
)

// Tool names
const (
	ToolAssessPatient     = "assess_patient"
	ToolValidateConfig    = "validate_config"
	ToolListInterventions = "list_interventions"
	ToolServerStats       = "server_stats"
)

// ServerName is reported to clients during initialization.
const ServerName = "lai-prep-bridge"

// Server is the MCP server. It holds no engine; each call resolves its
// configuration through the cache and builds an engine for it.
type Server struct {
	settings  *config.Settings
	mcpServer *mcp.Server
	cache     *config.Cache
	limiter   *RateLimiter
	history   history.Store
	logger    *logrus.Logger
	now       func() time.Time
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithHistoryStore enables saving assessments from assess_patient.
func WithHistoryStore(store history.Store) ServerOption {
	return func(s *Server) error {
		s.history = store
		return nil
	}
}

// WithClock overrides the time source used to stamp exports.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) error {
		s.now = now
		return nil
	}
}

// NewServer creates the MCP server and registers its tools.
func NewServer(settings *config.Settings, opts ...ServerOption) (*Server, error) {
	if settings == nil {
		return nil, errors.New("settings are required")
	}

	server := &Server{
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if server.logger == nil {
		server.logger = settings.NewLogger(os.Stderr)
	}

	cache, err := config.NewCache(settings.CacheSize, settings.CacheTTL, server.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create configuration cache: %w", err)
	}
	server.cache = cache
	server.limiter = NewRateLimiter(settings.RateLimit, settings.RateBurst, server.logger)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: report.ToolVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"rate_limit": settings.RateLimit,
		"rate_burst": settings.RateBurst,
		"history":    server.history != nil,
	}).Info("MCP server initialized")
	return server, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolAssessPatient,
		Description: "Assess LAI-PrEP bridge period attrition risk for one patient and recommend interventions",
	}, s.assessPatient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolValidateConfig,
		Description: "Validate a risk model configuration file and report errors and warnings",
	}, s.validateConfig)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListInterventions,
		Description: "List the configured interventions, optionally restricted to one population",
	}, s.listInterventions)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolServerStats,
		Description: "Report rate limiter denials and configuration cache statistics",
	}, s.serverStats)

	s.logger.WithField("tool_count", 4).Debug("Registered MCP tools")
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting LAI-PrEP MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases the history store, if any.
func (s *Server) Close() error {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close history store")
			return err
		}
	}
	return nil
}

// RateLimitStats returns the tool-call limiter statistics.
func (s *Server) RateLimitStats() RateLimitStats {
	return s.limiter.Stats()
}

// CacheStats returns the configuration cache statistics.
func (s *Server) CacheStats() config.CacheStats {
	return s.cache.Stats()
}
