// Package scorecmder provides the score command for judging recorded
// conversations with an LLM scorer.
package scorecmder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/probeworks/gauntlet/cmd/gauntlet/sqlitepath"
	"github.com/probeworks/gauntlet/pkg/cliui"
	"github.com/probeworks/gauntlet/pkg/config"
	"github.com/probeworks/gauntlet/pkg/credentials"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	memoryutils "github.com/probeworks/gauntlet/pkg/memory/utils"
	"github.com/probeworks/gauntlet/pkg/orchestrator"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/scorer"
	"github.com/probeworks/gauntlet/pkg/scorer/category"
	"github.com/probeworks/gauntlet/pkg/scorer/likert"
	targetutils "github.com/probeworks/gauntlet/pkg/target/utils"
	"github.com/probeworks/gauntlet/pkg/utils"
)

type scoreCommander struct {
	pieceArgs     []string
	rubricPath    string
	likertPath    string
	responsesOnly bool
	batchSize     int

	scorerProvider string
	scorerEndpoint string
	scorerModel    string
	provider       string
	endpoint       string
	model          string
	memoryProvider string
	sqlitePath     string
	postgresURL    string

	configDir string
	debug     bool

	log *slog.Logger
}

var scoreFlags = config.FlagSet{
	config.FlagScorerProvider: {
		Name:        "scorer-provider",
		ViperKey:    "scoring.provider",
		Description: "Judge provider (defaults to target.provider)",
	},
	config.FlagScorerEndpoint: {
		Name:        "scorer-endpoint",
		ViperKey:    "scoring.endpoint",
		Description: "Judge endpoint URL (defaults to target.endpoint)",
	},
	config.FlagScorerModel: {
		Name:        "scorer-model",
		ViperKey:    "scoring.model",
		Description: "Judge model name (defaults to target.model)",
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
}

var scoreFlagKeys = []string{
	config.FlagScorerProvider,
	config.FlagScorerEndpoint,
	config.FlagScorerModel,
	config.FlagMemoryProvider,
	config.FlagSQLite,
	config.FlagPostgres,
}

const scoreLongDesc string = `Judge recorded conversations with an LLM scorer.

Pass conversation ids as arguments to score whole conversations, or
--piece ids to score individual pieces. Exactly one rubric is required:
--rubric for true/false category classification, --likert for a graded
scale. Both accept a built-in name (rubrics: harmful_content,
sentiment; scales: fairness_bias, harm, persuasion) or a path to a
TOML file. Scores are persisted to memory next to the pieces they
judge.

By default only assistant responses are scored; pass
--responses-only=false to also judge the attack prompts themselves.

The judge target resolves from the scoring.* config section and falls
back to the target.* section, so a single configured provider serves
both attack and judgment.

Examples:
  gauntlet score 3f8a... --rubric harmful_content
  gauntlet score 3f8a... 9c1d... --likert harm
  gauntlet score 3f8a... --rubric ./jailbreak.toml
  gauntlet score --piece 7b2e... --rubric harmful_content --responses-only=false`

const scoreShortDesc string = "Judge recorded conversations with an LLM scorer"

func NewScoreCmd() *cobra.Command {
	cmder := &scoreCommander{}

	cmd := &cobra.Command{
		Use:   "score [conversation-ids...]",
		Short: scoreShortDesc,
		Long:  scoreLongDesc,
		Args:  cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, scoreFlags, scoreFlagKeys)

			cmder.scorerProvider = v.GetString("scoring.provider")
			cmder.scorerEndpoint = v.GetString("scoring.endpoint")
			cmder.scorerModel = v.GetString("scoring.model")
			cmder.provider = v.GetString("target.provider")
			cmder.endpoint = v.GetString("target.endpoint")
			cmder.model = v.GetString("target.model")
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

	config.AddStringFlag(cmd, scoreFlags, config.FlagScorerProvider, &cmder.scorerProvider)
	config.AddStringFlag(cmd, scoreFlags, config.FlagScorerEndpoint, &cmder.scorerEndpoint)
	config.AddStringFlag(cmd, scoreFlags, config.FlagScorerModel, &cmder.scorerModel)
	config.AddStringFlag(cmd, scoreFlags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, scoreFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, scoreFlags, config.FlagPostgres, &cmder.postgresURL)

	cmd.Flags().StringArrayVar(&cmder.pieceArgs, "piece", nil, "Piece id to score (repeatable)")
	cmd.Flags().StringVar(&cmder.rubricPath, "rubric", "", "Category rubric: a built-in name or a TOML path")
	cmd.Flags().StringVar(&cmder.likertPath, "likert", "", "Likert scale: a built-in name or a TOML path")
	cmd.Flags().BoolVar(&cmder.responsesOnly, "responses-only", true, "Score only assistant responses")
	cmd.Flags().IntVarP(&cmder.batchSize, "batch", "b", orchestrator.DefaultBatchSize, "Max concurrent judge calls")

	return cmd
}

func (c *scoreCommander) run(ctx context.Context, args []string) error {
	c.log = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	if (c.rubricPath == "") == (c.likertPath == "") {
		return fmt.Errorf("exactly one of --rubric or --likert is required")
	}
	if len(args) == 0 && len(c.pieceArgs) == 0 {
		return fmt.Errorf("nothing to score: pass conversation ids or --piece ids")
	}

	pieceIDs := make([]uuid.UUID, 0, len(c.pieceArgs))
	for _, arg := range c.pieceArgs {
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("invalid piece id %q: %w", arg, err)
		}
		pieceIDs = append(pieceIDs, id)
	}

	mem, err := c.newMemoryDriver(ctx)
	if err != nil {
		return err
	}
	defer mem.Close()

	judge, err := c.newScorer(ctx, mem)
	if err != nil {
		return err
	}

	orch, err := orchestrator.NewScoring(orchestrator.ScoringConfig{
		Memory:        mem,
		Scorer:        judge,
		BatchSize:     c.batchSize,
		ResponsesOnly: c.responsesOnly,
		Logger:        c.log,
	})
	if err != nil {
		return err
	}

	var scores []*prompt.Score

	if len(args) > 0 {
		got, err := orch.ScoreConversations(ctx, args)
		if err != nil {
			return err
		}
		scores = append(scores, got...)
	}

	if len(pieceIDs) > 0 {
		got, err := orch.ScorePiecesByID(ctx, pieceIDs)
		if err != nil {
			return err
		}
		scores = append(scores, got...)
	}

	return c.printScores(ctx, mem, scores)
}

func (c *scoreCommander) newMemoryDriver(ctx context.Context) (memory.Driver, error) {
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

// newScorer builds the rubric or Likert scorer over a judge target. The
// judge's provider settings fall back to the attack target's.
func (c *scoreCommander) newScorer(ctx context.Context, mem memory.Driver) (scorer.Scorer, error) {
	provider := c.scorerProvider
	if provider == "" {
		provider = c.provider
	}
	endpoint := c.scorerEndpoint
	if endpoint == "" {
		endpoint = c.endpoint
	}
	model := c.scorerModel
	if model == "" {
		model = c.model
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	apiKey, err := mgr.ResolveKey(provider)
	if err != nil {
		return nil, err
	}

	judge, err := targetutils.NewChatTarget(ctx, &targetutils.NewChatTargetOpts{
		ProviderType: provider,
		Endpoint:     endpoint,
		APIKey:       apiKey,
		Model:        model,
		Memory:       mem,
	})
	if err != nil {
		return nil, fmt.Errorf("creating judge target: %w", err)
	}

	if c.rubricPath != "" {
		classifier, ok := category.BuiltinClassifier(c.rubricPath)
		if !ok {
			classifier, err = category.LoadClassifier(c.rubricPath)
			if err != nil {
				return nil, err
			}
		}
		return category.New(judge, mem, classifier, category.WithLogger(c.log))
	}

	scale, ok := likert.BuiltinScale(c.likertPath)
	if !ok {
		scale, err = likert.LoadScale(c.likertPath)
		if err != nil {
			return nil, err
		}
	}
	return likert.New(judge, mem, scale, likert.WithLogger(c.log))
}

// printScores renders each score next to a preview of the piece it
// judged.
func (c *scoreCommander) printScores(ctx context.Context, mem memory.Driver, scores []*prompt.Score) error {
	if len(scores) == 0 {
		fmt.Printf("\n  %s Nothing was scored %s\n\n",
			cliui.WarnStyle.Render("!"),
			cliui.DimStyle.Render("(responses-only is on; pass --responses-only=false to judge prompts too)"),
		)
		return nil
	}

	fmt.Printf("\n  %s Scored %s pieces\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(fmt.Sprintf("%d", len(scores))),
	)

	ids := make([]uuid.UUID, 0, len(scores))
	for _, s := range scores {
		ids = append(ids, s.PieceID)
	}
	pieces, err := mem.PiecesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading scored pieces: %w", err)
	}
	byID := make(map[uuid.UUID]*prompt.Piece, len(pieces))
	for _, p := range pieces {
		byID[p.ID] = p
	}

	for _, s := range scores {
		if p, ok := byID[s.PieceID]; ok {
			preview := utils.Truncate(strings.ReplaceAll(p.ConvertedValue, "\n", " "), 72)
			fmt.Printf("  %s %s %s\n",
				cliui.HashStyle.Render(utils.Truncate(p.ConversationID, 8)),
				cliui.RoleStyle(p.Role).Render("["+string(p.Role)+"]"),
				cliui.PreviewStyle.Render(preview),
			)
		}
		fmt.Printf("    %s %s\n", cliui.DimStyle.Render("score:"), cliui.FormatScore(s))
	}

	fmt.Println()

	return nil
}
