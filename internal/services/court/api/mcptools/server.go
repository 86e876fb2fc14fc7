package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/courtroom/internal/platform/i18n/catalog"
	"github.com/louisbranch/courtroom/internal/services/court/api/view"
)

const (
	serverName = "courtroom"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Config wires a tool server.
type Config struct {
	Hearings Hearings
	// Catalog localizes error messages. Defaults to the embedded catalog.
	Catalog *catalog.Bundle
	Locale  string
	Logf    func(string, ...any)
}

// Server is the hearing MCP server.
type Server struct {
	mcpServer *mcp.Server
	sessions  *sessions
}

// NewServer registers every hearing tool.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Hearings == nil {
		return nil, fmt.Errorf("hearings are required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	localizer := view.NewLocalizer(cfg.Catalog, cfg.Locale)
	open := newSessions(cfg.Hearings, cfg.Logf)

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, CaseListTool(), CaseListHandler(cfg.Hearings, localizer))
	mcp.AddTool(mcpServer, MatchCreateTool(), MatchCreateHandler(cfg.Hearings, localizer))
	mcp.AddTool(mcpServer, MatchListTool(), MatchListHandler(cfg.Hearings, localizer))
	mcp.AddTool(mcpServer, MatchStartTool(), matchStartHandler(open, localizer))
	mcp.AddTool(mcpServer, MatchSelectOptionTool(), matchSelectOptionHandler(open, localizer))
	mcp.AddTool(mcpServer, MatchSelectEvidenceTool(), matchSelectEvidenceHandler(open, localizer))
	mcp.AddTool(mcpServer, MatchStateTool(), matchStateHandler(cfg.Hearings, localizer))
	mcp.AddTool(mcpServer, MatchPauseTool(), matchPauseHandler(open, localizer))
	mcp.AddTool(mcpServer, MatchRetryFinalSaveTool(), matchRetryFinalSaveHandler(open, localizer))

	return &Server{mcpServer: mcpServer, sessions: open}, nil
}

// Serve runs the server over transport until it stops or ctx ends. Open
// hearings are paused on return.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	defer s.Close()
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// HTTPHandler serves the tools over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// Connect attaches one transport, as used by in-process clients.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}

// Close pauses every hearing the server opened.
func (s *Server) Close() {
	if s == nil || s.sessions == nil {
		return
	}
	s.sessions.closeAll()
}
