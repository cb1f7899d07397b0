// Package mcp exposes the lead store as Model Context Protocol tools over stdio.
package mcp

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/habitatfuturo/habitat/internal/catalog"
	"github.com/habitatfuturo/habitat/internal/crm"
)

// Server wires lead tools into an MCP server.
type Server struct {
	store    *crm.Store
	catalog  catalog.Catalog
	log      *log.Logger
	onRecord func(crm.Result)
	mcp      *server.MCPServer
}

// Options configures NewServer.
type Options struct {
	Store   *crm.Store
	Catalog catalog.Catalog
	Logger  *log.Logger
	Version string
	// OnRecord is called after register_lead created or updated a record.
	OnRecord func(crm.Result)
}

// NewServer builds the MCP server and registers its tools.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		store:    opts.Store,
		catalog:  opts.Catalog,
		log:      logger,
		onRecord: opts.OnRecord,
		mcp:      server.NewMCPServer("habitat", opts.Version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("lead_count",
		mcp.WithDescription("Number of customer records in the lead store"),
	), s.handleLeadCount)

	s.mcp.AddTool(mcp.NewTool("recent_leads",
		mcp.WithDescription("Most recent customer records (name, phone, appointment, interest)"),
		mcp.WithNumber("limit", mcp.Description("How many records to return (default 3)")),
	), s.handleRecentLeads)

	s.mcp.AddTool(mcp.NewTool("register_lead",
		mcp.WithDescription("Create or update a customer record. Matching is by session id, then by phone."),
		mcp.WithString("name", mcp.Description("Customer name")),
		mcp.WithString("phone", mcp.Description("Customer phone")),
		mcp.WithString("appointment", mcp.Description("Requested visit date and time")),
		mcp.WithString("interest", mcp.Description("Property reference (REF-XXX) or GENERAL")),
		mcp.WithString("session_id", mcp.Description("Conversation id; a new one is generated when empty")),
	), s.handleRegisterLead)

	s.mcp.AddTool(mcp.NewTool("list_properties",
		mcp.WithDescription("The agency inventory and conditions"),
	), s.handleListProperties)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
