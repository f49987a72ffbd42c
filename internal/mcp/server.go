// Package mcp exposes the governor over the Model Context Protocol so
// agent frontends can route requests, inspect tickets and resolve
// escalations through typed tools.
package mcp

import (
	"context"
	"fmt"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/primegate/primegate/internal/governor"
)

// Config holds MCP server configuration.
type Config struct {
	ConfigPath string
}

// Server wraps the MCP SDK server around a wired governor. The
// governor can be swapped on config reload while requests are in
// flight.
type Server struct {
	mcpServer  *mcpsdk.Server
	configPath string

	mu  sync.RWMutex
	gov *governor.Governor
}

// New builds the governor and registers the primegate tools.
func New(ctx context.Context, cfg Config) (*Server, error) {
	gov, err := governor.New(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("mcp: %w", err)
	}

	s := &Server{gov: gov, configPath: cfg.ConfigPath}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "primegate",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases the governor's store and audit log.
func (s *Server) Close() error {
	return s.governor().Close()
}

func (s *Server) governor() *governor.Governor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gov
}

// Reload rebuilds the governor from the config file and swaps it in.
// The old governor keeps serving until the new one is ready; reload
// failure leaves it in place.
func (s *Server) Reload(ctx context.Context) error {
	next, err := governor.New(ctx, s.configPath)
	if err != nil {
		return fmt.Errorf("mcp: reload: %w", err)
	}
	s.mu.Lock()
	old := s.gov
	s.gov = next
	s.mu.Unlock()
	return old.Close()
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "primegate_govern",
		Description: "Run a user request through governance. Returns the final action (allow/refuse/rewrite/escalate), the user-visible response, and the escalation ticket id when review is required.",
	}, s.handleGovern)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "primegate_tickets",
		Description: "List escalation tickets visible to the acting identity. Users see their own tickets; staff and admins see all.",
	}, s.handleTickets)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "primegate_pending",
		Description: "List escalation tickets awaiting human review.",
	}, s.handlePending)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "primegate_resolve",
		Description: "Approve or reject a pending escalation ticket. Requires an admin identity; resolutions are write-once.",
	}, s.handleResolve)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "primegate_stats",
		Description: "Summarize the escalation queue: totals by status and average confidence.",
	}, s.handleStats)
}
