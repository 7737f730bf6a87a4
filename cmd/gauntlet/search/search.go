// Package searchcmder provides the search command for semantic search
// over recorded conversations.
package searchcmder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/probeworks/gauntlet/api/search"
	"github.com/probeworks/gauntlet/cmd/gauntlet/sqlitepath"
	"github.com/probeworks/gauntlet/pkg/cliui"
	"github.com/probeworks/gauntlet/pkg/config"
	"github.com/probeworks/gauntlet/pkg/credentials"
	embeddingutils "github.com/probeworks/gauntlet/pkg/embeddings/utils"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	memoryutils "github.com/probeworks/gauntlet/pkg/memory/utils"
	"github.com/probeworks/gauntlet/pkg/utils"
	vectorutils "github.com/probeworks/gauntlet/pkg/vector/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	matchedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	branchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type searchCommander struct {
	query   string
	topK    int
	reindex bool

	memoryProvider string
	sqlitePath     string
	postgresURL    string
	vectorProvider string
	vectorTarget   string
	embedProvider  string
	embedTarget    string
	embedModel     string
	embedDims      uint

	configDir string
	debug     bool

	log *slog.Logger
}

var searchFlags = config.FlagSet{
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
		Description: "Vector store backend (sqlitevec, qdrant)",
	},
	config.FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Vector store location (file path for sqlitevec, URL for qdrant)",
	},
	config.FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding backend (ollama, openai)",
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

var searchFlagKeys = []string{
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

const searchLongDesc string = `Semantic search over recorded conversations.

Embeds the query, finds the most similar recorded pieces in the vector
store, and prints each match inside its conversation: every turn from
the start, with the matched piece marked.

Requires a configured vector store and embedder (vector_store.* and
embedding.* config keys). Pieces are indexed as they are recorded when
the event stream is wired to an indexer; --reindex re-embeds everything
already in memory, which is how an existing database gets searchable
the first time.

Examples:
  gauntlet search "refuses then complies after roleplay framing"
  gauntlet search "base64 payload" --top 10
  gauntlet search --reindex
  gauntlet search --reindex "prompt injection"`

const searchShortDesc string = "Semantic search over recorded conversations"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, searchFlags, searchFlagKeys)

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
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cmder.query = args[0]
			}
			if cmder.query == "" && !cmder.reindex {
				return fmt.Errorf("a query or --reindex is required")
			}

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, searchFlags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, searchFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, searchFlags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, searchFlags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, searchFlags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, searchFlags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, searchFlags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, searchFlags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, searchFlags, config.FlagEmbeddingDims, &cmder.embedDims)

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVar(&cmder.reindex, "reindex", false, "Re-embed and index every recorded piece before searching")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	c.log = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	mem, err := c.newMemoryDriver(ctx)
	if err != nil {
		return err
	}
	defer mem.Close()

	searcher, err := c.newSearcher(ctx, mem)
	if err != nil {
		return err
	}

	if c.reindex {
		var indexed int
		fmt.Println()
		if err := cliui.Step(os.Stdout, "Reindexing recorded pieces", func() error {
			var stepErr error
			indexed, stepErr = searcher.Reindex(ctx)
			return stepErr
		}); err != nil {
			return fmt.Errorf("reindexing: %w", err)
		}
		fmt.Printf("  %s Indexed %s pieces\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(strconv.Itoa(indexed)),
		)
		if c.query == "" {
			fmt.Println()
			return nil
		}
	}

	output, err := searcher.Search(ctx, c.query, c.topK)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.HashStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for i, result := range output.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result search.SearchResult) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.DimStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		cliui.HashStyle.Render(result.ConversationID),
	)

	if result.Turns == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("(no conversation found)"))
		return
	}

	preview := strings.ReplaceAll(utils.Truncate(result.Preview, 80), "\n", " ")
	fmt.Printf("  %s %s\n", cliui.DimStyle.Render(result.Role+":"), cliui.PreviewStyle.Render(preview))
	fmt.Printf("  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d turns", result.Turns)))

	for _, turn := range result.Conversation {
		text := turn.Text
		if text == "" {
			text = "(no text content)"
		}
		text = strings.ReplaceAll(utils.Truncate(text, 60), "\n", " ")
		shortID := utils.Truncate(turn.PieceID, 8)

		if turn.Matched {
			fmt.Printf("  %s %s %s %s\n",
				matchedStyle.Render(">>>"),
				cliui.DimStyle.Render("["+turn.Role+"]"),
				cliui.PreviewStyle.Render(text),
				cliui.DimStyle.Render(shortID),
			)
		} else {
			fmt.Printf("  %s %s %s %s\n",
				branchStyle.Render(" ├─"),
				cliui.DimStyle.Render("["+turn.Role+"]"),
				branchStyle.Render(text),
				cliui.DimStyle.Render(shortID),
			)
		}
	}

	fmt.Println()
}

func (c *searchCommander) newMemoryDriver(ctx context.Context) (memory.Driver, error) {
	if c.memoryProvider == "sqlite" {
		path := c.sqlitePath
		if path == "" {
			resolved, err := sqlitepath.ResolveSQLitePath("")
			if err != nil {
				return nil, err
			}
			path = resolved
		}
		return memoryutils.NewDriver(ctx, &memoryutils.NewDriverOpts{
			ProviderType: "sqlite",
			SQLitePath:   path,
		})
	}

	return memoryutils.NewDriver(ctx, &memoryutils.NewDriverOpts{
		ProviderType: c.memoryProvider,
		PostgresURL:  c.postgresURL,
	})
}

// newSearcher builds the search stack. Unlike serve, a missing or broken
// vector store is an error here: the user explicitly asked to search.
func (c *searchCommander) newSearcher(ctx context.Context, mem memory.Driver) (*search.Searcher, error) {
	if c.vectorTarget == "" {
		return nil, fmt.Errorf("no vector store configured: set vector_store.target (e.g. gauntlet config set vector_store.target ./gauntlet-vec.db)")
	}

	apiKey := ""
	if c.embedProvider == "openai" {
		mgr, err := credentials.NewManager(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		apiKey, err = mgr.ResolveKey("openai")
		if err != nil {
			return nil, err
		}
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embedProvider,
		Endpoint:     c.embedTarget,
		APIKey:       apiKey,
		Model:        c.embedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
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
			return nil, fmt.Errorf("invalid qdrant target %q: %w", c.vectorTarget, err)
		}
		opts.Host = host
		opts.Port = port
		opts.Collection = "gauntlet"
	default:
		opts.DBPath = c.vectorTarget
	}

	vec, err := vectorutils.NewVectorDriver(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	return search.NewSearcher(embedder, vec, mem, c.log), nil
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
