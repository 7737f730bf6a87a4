// Package servecmder provides the serve command running the HTTP API and
// MCP server over recorded conversations.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/probeworks/gauntlet/api"
	"github.com/probeworks/gauntlet/api/mcp"
	"github.com/probeworks/gauntlet/api/search"
	"github.com/probeworks/gauntlet/cmd/gauntlet/sqlitepath"
	"github.com/probeworks/gauntlet/pkg/config"
	"github.com/probeworks/gauntlet/pkg/credentials"
	embeddingutils "github.com/probeworks/gauntlet/pkg/embeddings/utils"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/memory/inmemory"
	memoryutils "github.com/probeworks/gauntlet/pkg/memory/utils"
	vectorutils "github.com/probeworks/gauntlet/pkg/vector/utils"
)

type ServeCommander struct {
	listen         string
	memoryProvider string
	sqlitePath     string
	postgresURL    string
	vectorProvider string
	vectorTarget   string
	embedProvider  string
	embedTarget    string
	embedModel     string
	embedDims      uint
	noMCP          bool
	configDir      string
	debug          bool

	log *slog.Logger
}

// serveFlags defines every config-backed flag the serve command registers.
var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagMemoryProvider: {
		Name:        "memory-provider",
		ViperKey:    "memory.provider",
		Description: "Memory backend (sqlite, postgres, inmemory)",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "memory.sqlite_path",
		Description: "Path to the SQLite conversation database",
	},
	config.FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "memory.postgres_url",
		Description: "Postgres connection string for the postgres memory backend",
	},
	config.FlagVectorStoreProv: {
		Name:        "vector-store-provider",
		ViperKey:    "vector_store.provider",
		Description: "Vector store backend for search (sqlitevec, qdrant)",
	},
	config.FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Vector store location (file path for sqlitevec, URL for qdrant)",
	},
	config.FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding backend for search (ollama, openai)",
	},
	config.FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding endpoint URL",
	},
	config.FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
}

// serveFlagKeys orders the registry keys bound to viper in PreRunE.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagMemoryProvider,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const serveLongDesc string = `Run the gauntlet API and MCP server.

Serves recorded attack conversations, scores, and semantic search over
HTTP, plus an MCP endpoint at /mcp exposing search and conversation tools
to agent clients.

Values resolve in order: flag, GAUNTLET_* environment variable, config
file, default. For example GAUNTLET_API_LISTEN overrides api.listen from
config.toml, and --listen overrides both.

Search requires a configured vector store and embedder; when either is
missing the server still runs, with search disabled.

Examples:
  gauntlet serve
  gauntlet serve --listen :9090 --sqlite ./gauntlet.db
  gauntlet serve --memory-provider postgres --postgres postgres://localhost:5432/gauntlet
  gauntlet serve --vector-store-provider qdrant --vector-store-target http://localhost:6334`

const serveShortDesc string = "Run the gauntlet API and MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

			// Read everything back through viper so the full precedence
			// chain applies: flag > env > config file > default.
			cmder.listen = v.GetString("api.listen")
			cmder.memoryProvider = v.GetString("memory.provider")
			cmder.sqlitePath = v.GetString("memory.sqlite_path")
			cmder.postgresURL = v.GetString("memory.postgres_url")
			cmder.vectorProvider = v.GetString("vector_store.provider")
			cmder.vectorTarget = v.GetString("vector_store.target")
			cmder.embedProvider = v.GetString("embedding.provider")
			cmder.embedTarget = v.GetString("embedding.target")
			cmder.embedModel = v.GetString("embedding.model")
			cmder.embedDims = v.GetUint("embedding.dimensions")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embedDims)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the MCP endpoint")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.log = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	mem, err := c.newMemoryDriver(ctx)
	if err != nil {
		return err
	}
	defer mem.Close()

	searcher := c.newSearcher(ctx, mem)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Memory:   mem,
		Searcher: searcher,
		Noop:     c.noMCP,
		Logger:   c.log,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiConfig := api.Config{
		ListenAddr: c.listen,
		Searcher:   searcher,
	}
	if !c.noMCP {
		apiConfig.MCPHandler = mcpServer.Handler()
	}

	apiServer, err := api.NewServer(apiConfig, mem, c.log)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.log.Info("received signal, shutting down", "signal", sig.String())
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) newMemoryDriver(ctx context.Context) (memory.Driver, error) {
	if c.memoryProvider == "sqlite" {
		path := c.sqlitePath
		if path == "" {
			resolved, err := sqlitepath.ResolveSQLitePath("")
			if err != nil {
				c.log.Info("no SQLite database found, using in-memory storage")
				return inmemory.NewDriver(), nil
			}
			path = resolved
		}
		c.log.Info("using SQLite storage", "path", path)
		return memoryutils.NewDriver(ctx, &memoryutils.NewDriverOpts{
			ProviderType: "sqlite",
			SQLitePath:   path,
		})
	}

	c.log.Info("using memory storage", "provider", c.memoryProvider)
	return memoryutils.NewDriver(ctx, &memoryutils.NewDriverOpts{
		ProviderType: c.memoryProvider,
		PostgresURL:  c.postgresURL,
	})
}

// newSearcher builds the semantic search stack from the resolved vector
// store and embedding settings. Search is optional: any failure here
// disables it rather than stopping the server.
func (c *ServeCommander) newSearcher(ctx context.Context, mem memory.Driver) *search.Searcher {
	if c.vectorTarget == "" {
		c.log.Info("no vector store configured, search disabled")
		return nil
	}

	apiKey := ""
	if c.embedProvider == "openai" {
		mgr, err := credentials.NewManager(c.configDir)
		if err == nil {
			apiKey, _ = mgr.ResolveKey("openai")
		}
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embedProvider,
		Endpoint:     c.embedTarget,
		APIKey:       apiKey,
		Model:        c.embedModel,
	})
	if err != nil {
		c.log.Warn("creating embedder failed, search disabled", "error", err)
		return nil
	}

	opts := &vectorutils.NewVectorDriverOpts{
		ProviderType: c.vectorProvider,
		Dimensions:   c.embedDims,
		Logger:       c.log,
	}
	switch c.vectorProvider {
	case "qdrant":
		host, port, err := splitHostPort(c.vectorTarget)
		if err != nil {
			c.log.Warn("invalid qdrant target, search disabled", "target", c.vectorTarget, "error", err)
			return nil
		}
		opts.Host = host
		opts.Port = port
		opts.Collection = "gauntlet"
	default:
		opts.DBPath = c.vectorTarget
	}

	vec, err := vectorutils.NewVectorDriver(ctx, opts)
	if err != nil {
		c.log.Warn("creating vector driver failed, search disabled", "error", err)
		return nil
	}

	c.log.Info("search enabled",
		"vector_store", c.vectorProvider,
		"embedder", c.embedProvider,
		"model", c.embedModel,
	)
	return search.NewSearcher(embedder, vec, mem, c.log)
}

// splitHostPort parses a qdrant target URL like http://localhost:6334
// into its host and port parts.
func splitHostPort(target string) (string, int, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", 0, err
	}

	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("no host in %q", target)
	}

	port := 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port in %q: %w", target, err)
		}
	}

	return host, port, nil
}
