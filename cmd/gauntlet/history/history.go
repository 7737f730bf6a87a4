// Package historycmder provides the history command for browsing
// recorded attack conversations.
package historycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/probeworks/gauntlet/cmd/gauntlet/sqlitepath"
	"github.com/probeworks/gauntlet/pkg/cliui"
	"github.com/probeworks/gauntlet/pkg/config"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	memoryutils "github.com/probeworks/gauntlet/pkg/memory/utils"
)

type historyCommander struct {
	interactive bool
	render      bool

	memoryProvider string
	sqlitePath     string
	postgresURL    string

	configDir string
	debug     bool

	log *slog.Logger
}

var historyFlags = config.FlagSet{
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
}

var historyFlagKeys = []string{
	config.FlagMemoryProvider,
	config.FlagSQLite,
	config.FlagPostgres,
}

const historyLongDesc string = `Browse recorded attack conversations.

With no arguments, list conversations with piece counts and activity
times. Pass a conversation id to print its full transcript: the
prompts as sent, the responses, original values where a converter
changed them, and any scores. --render formats assistant responses as
markdown.

--interactive opens a terminal UI for the same data. Navigate with
j/k, open a conversation with enter, go back with esc.

Examples:
  gauntlet history
  gauntlet history 3f8a1c2e-...
  gauntlet history 3f8a1c2e-... --render
  gauntlet history --interactive
  gauntlet history 3f8a1c2e-... --interactive`

const historyShortDesc string = "Browse recorded attack conversations"

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, historyFlags, historyFlagKeys)

			cmder.memoryProvider = v.GetString("memory.provider")
			cmder.sqlitePath = v.GetString("memory.sqlite_path")
			cmder.postgresURL = v.GetString("memory.postgres_url")

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), args)
		},
	}

	config.AddStringFlag(cmd, historyFlags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, historyFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, historyFlags, config.FlagPostgres, &cmder.postgresURL)

	cmd.Flags().BoolVarP(&cmder.interactive, "interactive", "i", false, "Browse conversations in a terminal UI")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render assistant responses as markdown")

	return cmd
}

func (c *historyCommander) run(ctx context.Context, args []string) error {
	c.log = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	mem, err := c.newMemoryDriver(ctx)
	if err != nil {
		return err
	}
	defer mem.Close()

	conversationID := ""
	if len(args) == 1 {
		conversationID = args[0]
	}

	if c.interactive {
		return runHistoryTUI(ctx, mem, conversationID)
	}

	if conversationID != "" {
		return c.printConversation(ctx, mem, conversationID)
	}

	return c.printList(ctx, mem)
}

func (c *historyCommander) newMemoryDriver(ctx context.Context) (memory.Driver, error) {
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

func (c *historyCommander) printList(ctx context.Context, mem memory.Driver) error {
	summaries, err := mem.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No conversations recorded yet. Run \"gauntlet run\" to create some."))
		return nil
	}

	fmt.Printf("\n  %s %s conversations\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(len(summaries))),
	)
	fmt.Printf("  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%-36s  %6s  %-16s  %s", "conversation", "pieces", "started", "last activity")))

	for _, summary := range summaries {
		fmt.Printf("  %s  %6d  %-16s  %s\n",
			cliui.HashStyle.Render(fmt.Sprintf("%-36s", summary.ConversationID)),
			summary.Pieces,
			summary.StartedAt.Local().Format("2006-01-02 15:04"),
			cliui.DimStyle.Render(formatAge(time.Since(summary.LastActivityAt))),
		)
	}

	fmt.Println()

	return nil
}

func (c *historyCommander) printConversation(ctx context.Context, mem memory.Driver, conversationID string) error {
	pieces, err := mem.PiecesByConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if len(pieces) == 0 {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	ids := make([]uuid.UUID, 0, len(pieces))
	for _, p := range pieces {
		ids = append(ids, p.ID)
	}
	scores, err := mem.ScoresByPieceIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading scores: %w", err)
	}

	var opts []cliui.RenderOption
	if c.render {
		opts = append(opts, cliui.WithMarkdown())
	}

	fmt.Println()
	cliui.RenderConversation(os.Stdout, conversationID, pieces, scores, opts...)
	fmt.Println()

	return nil
}
