// Package api provides an HTTP API server for inspecting recorded
// conversations, scores, and search results.
package api

import (
	"net/http"

	"github.com/probeworks/gauntlet/api/search"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Searcher enables the /search endpoint when set.
	Searcher *search.Searcher

	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler
}
