// Package mcp provides an MCP (Model Context Protocol) server exposing
// recorded red-team conversations to agent clients.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probeworks/gauntlet/api/search"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/utils"
)

type Config struct {
	// Memory is the conversation store backing the conversation tool.
	Memory memory.Driver

	// Searcher enables the search tool when set.
	Searcher *search.Searcher

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured structured logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the conversation tool, plus the
// search tool when a searcher is configured.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "gauntlet",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Memory == nil {
		return nil, errors.New("memory driver is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	// Add tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        conversationToolName,
		Description: conversationDescription,
	}, s.handleConversation)

	// Add the search tool if a searcher is configured
	if c.Searcher != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
