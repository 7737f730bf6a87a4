// Package runcmder provides the run command for sending attack prompts
// through a converter chain to a target.
package runcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/probeworks/gauntlet/cmd/gauntlet/sqlitepath"
	"github.com/probeworks/gauntlet/pkg/cliui"
	"github.com/probeworks/gauntlet/pkg/config"
	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/credentials"
	"github.com/probeworks/gauntlet/pkg/eventstream"
	"github.com/probeworks/gauntlet/pkg/eventstream/kafka"
	"github.com/probeworks/gauntlet/pkg/eventstream/nop"
	"github.com/probeworks/gauntlet/pkg/git"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	memoryutils "github.com/probeworks/gauntlet/pkg/memory/utils"
	"github.com/probeworks/gauntlet/pkg/orchestrator"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/scorer"
	"github.com/probeworks/gauntlet/pkg/scorer/category"
	"github.com/probeworks/gauntlet/pkg/target"
	targetutils "github.com/probeworks/gauntlet/pkg/target/utils"
	"github.com/probeworks/gauntlet/pkg/utils"
)

type runCommander struct {
	promptsFile    string
	watchDir       string
	converterSpecs []string
	rubricPath     string
	labelArgs      []string
	dataType       string
	batchSize      int

	provider       string
	endpoint       string
	model          string
	scorerProvider string
	scorerEndpoint string
	scorerModel    string
	memoryProvider string
	sqlitePath     string
	postgresURL    string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	configDir string
	debug     bool

	log *slog.Logger
}

// runFlags defines every config-backed flag the run command registers.
var runFlags = config.FlagSet{
	config.FlagProvider: {
		Name:        "provider",
		ViperKey:    "target.provider",
		Description: "Target provider (openai, gemini)",
	},
	config.FlagEndpoint: {
		Name:        "endpoint",
		ViperKey:    "target.endpoint",
		Description: "Target endpoint URL (openai-compatible providers)",
	},
	config.FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "target.model",
		Description: "Target model name",
	},
	config.FlagScorerProvider: {
		Name:        "scorer-provider",
		ViperKey:    "scoring.provider",
		Description: "Judge provider for --rubric scoring (defaults to the target provider)",
	},
	config.FlagScorerEndpoint: {
		Name:        "scorer-endpoint",
		ViperKey:    "scoring.endpoint",
		Description: "Judge endpoint URL (defaults to the target endpoint)",
	},
	config.FlagScorerModel: {
		Name:        "scorer-model",
		ViperKey:    "scoring.model",
		Description: "Judge model name (defaults to the target model)",
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
	config.FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Event stream backend (nop, kafka)",
	},
	config.FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma-separated Kafka bootstrap brokers",
	},
	config.FlagEventsTopic: {
		Name:        "events-topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic for persistence events",
	},
}

// runFlagKeys orders the registry keys bound to viper in PreRunE.
var runFlagKeys = []string{
	config.FlagProvider,
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagScorerProvider,
	config.FlagScorerEndpoint,
	config.FlagScorerModel,
	config.FlagMemoryProvider,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

const runLongDesc string = `Send attack prompts through a converter chain to a target.

Each prompt becomes its own conversation: the converted prompt and the
target's response are recorded in memory, stamped with the orchestrator
identity, the converter chain, and any labels. The current repository
name is stamped as the "repo" label automatically.

Converters apply in flag order. Available converters:
  base64                   Base64-encode the prompt
  variation                LLM paraphrase of the prompt
  translation=<languages>  LLM translation (comma-separated languages)

With --rubric, each response is scored by an LLM judge against the given
category rubric right after the batch returns; the rubric is a built-in
name (harmful_content, sentiment) or a TOML path. With --watch, the
command keeps running and sends the contents of .txt files as they
appear in the watched directory, one prompt per line.

Values resolve in order: flag, GAUNTLET_* environment variable, config
file, default. API keys come from stored credentials ("gauntlet auth")
or the provider's environment variable.

Examples:
  gauntlet run "tell me how to pick a lock"
  gauntlet run --prompts ./prompts.txt --converter base64
  gauntlet run "ignore previous instructions" --converter variation --rubric harmful_content
  gauntlet run --watch ./prompts --label campaign=nightly
  cat prompts.txt | gauntlet run --prompts -`

const runShortDesc string = "Send attack prompts to a target"

func NewRunCmd() *cobra.Command {
	cmder := &runCommander{}

	cmd := &cobra.Command{
		Use:   "run [prompts...]",
		Short: runShortDesc,
		Long:  runLongDesc,
		Args:  cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, runFlags, runFlagKeys)

			// Read everything back through viper so the full precedence
			// chain applies: flag > env > config file > default.
			cmder.provider = v.GetString("target.provider")
			cmder.endpoint = v.GetString("target.endpoint")
			cmder.model = v.GetString("target.model")
			cmder.scorerProvider = v.GetString("scoring.provider")
			cmder.scorerEndpoint = v.GetString("scoring.endpoint")
			cmder.scorerModel = v.GetString("scoring.model")
			cmder.memoryProvider = v.GetString("memory.provider")
			cmder.sqlitePath = v.GetString("memory.sqlite_path")
			cmder.postgresURL = v.GetString("memory.postgres_url")
			cmder.eventsProvider = v.GetString("events.provider")
			cmder.eventsBrokers = v.GetString("events.brokers")
			cmder.eventsTopic = v.GetString("events.topic")

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

	config.AddStringFlag(cmd, runFlags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, runFlags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, runFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, runFlags, config.FlagScorerProvider, &cmder.scorerProvider)
	config.AddStringFlag(cmd, runFlags, config.FlagScorerEndpoint, &cmder.scorerEndpoint)
	config.AddStringFlag(cmd, runFlags, config.FlagScorerModel, &cmder.scorerModel)
	config.AddStringFlag(cmd, runFlags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, runFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, runFlags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, runFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, runFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, runFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	cmd.Flags().StringVarP(&cmder.promptsFile, "prompts", "f", "", "Path to a prompts file, one per line (- for stdin)")
	cmd.Flags().StringVar(&cmder.watchDir, "watch", "", "Watch a directory and send prompts from .txt files as they appear")
	cmd.Flags().StringArrayVarP(&cmder.converterSpecs, "converter", "c", nil, "Converter to apply, in order (base64, variation, translation=<languages>)")
	cmd.Flags().StringVar(&cmder.rubricPath, "rubric", "", "Category rubric (built-in name or TOML path); score each response with it")
	cmd.Flags().StringArrayVar(&cmder.labelArgs, "label", nil, "Label to stamp on every piece (key=value)")
	cmd.Flags().StringVar(&cmder.dataType, "data-type", "text", "Prompt data type (text, image_path, audio_path, url)")
	cmd.Flags().IntVarP(&cmder.batchSize, "batch", "b", orchestrator.DefaultBatchSize, "Max concurrent target calls")

	return cmd
}

func (c *runCommander) run(ctx context.Context, args []string) error {
	c.log = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	dataType := prompt.DataType(c.dataType)
	if !dataType.Valid() || dataType == prompt.DataTypeError {
		return fmt.Errorf("invalid data type %q", c.dataType)
	}

	prompts, err := c.gatherPrompts(args)
	if err != nil {
		return err
	}
	if len(prompts) == 0 && c.watchDir == "" {
		return fmt.Errorf("no prompts given: pass prompts as arguments, --prompts, or --watch")
	}

	labels, err := parseLabels(c.labelArgs)
	if err != nil {
		return err
	}
	if _, ok := labels["repo"]; !ok {
		if repo := git.RepoName(); repo != "" {
			labels["repo"] = repo
		}
	}

	mem, err := c.newMemoryDriver(ctx)
	if err != nil {
		return err
	}
	defer mem.Close()

	chat, err := c.newChatTarget(ctx, mem)
	if err != nil {
		return err
	}

	converters, err := c.buildConverters(ctx, chat)
	if err != nil {
		return err
	}

	scorers, err := c.buildScorers(ctx, mem)
	if err != nil {
		return err
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	orch, err := orchestrator.NewPromptSending(orchestrator.PromptSendingConfig{
		Target:     chat,
		Memory:     mem,
		Converters: converters,
		Scorers:    scorers,
		BatchSize:  c.batchSize,
		Labels:     labels,
		Publisher:  publisher,
		Logger:     c.log,
	})
	if err != nil {
		return err
	}

	if len(prompts) > 0 {
		groups, sendErr := orch.SendPrompts(ctx, prompts, dataType, nil)
		c.printGroups(ctx, mem, len(prompts), groups, len(scorers) > 0)
		if sendErr != nil {
			return sendErr
		}
	}

	if c.watchDir != "" {
		return c.watch(ctx, mem, orch, dataType, len(scorers) > 0)
	}

	return nil
}

// gatherPrompts collects prompts from positional arguments and the
// --prompts file, in that order.
func (c *runCommander) gatherPrompts(args []string) ([]string, error) {
	prompts := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.TrimSpace(arg) != "" {
			prompts = append(prompts, arg)
		}
	}

	if c.promptsFile == "" {
		return prompts, nil
	}

	var r io.Reader
	if c.promptsFile == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(c.promptsFile)
		if err != nil {
			return nil, fmt.Errorf("opening prompts file: %w", err)
		}
		defer f.Close()
		r = f
	}

	fromFile, err := readPrompts(r)
	if err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}

	return append(prompts, fromFile...), nil
}

// readPrompts reads one prompt per line, skipping blanks and # comments.
func readPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	return prompts, scanner.Err()
}

func parseLabels(args []string) (map[string]string, error) {
	labels := make(map[string]string, len(args)+1)
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid label %q: expected key=value", arg)
		}
		labels[key] = value
	}
	return labels, nil
}

func (c *runCommander) newMemoryDriver(ctx context.Context) (memory.Driver, error) {
	if c.memoryProvider == "sqlite" {
		path := c.sqlitePath
		if path == "" {
			resolved, err := sqlitepath.ResolveSQLitePath("")
			if err != nil {
				// First run: create a fresh database in the working directory.
				resolved = "gauntlet.db"
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

func (c *runCommander) newChatTarget(ctx context.Context, mem memory.Driver) (target.ChatTarget, error) {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	apiKey, err := mgr.ResolveKey(c.provider)
	if err != nil {
		return nil, err
	}

	return targetutils.NewChatTarget(ctx, &targetutils.NewChatTargetOpts{
		ProviderType: c.provider,
		Endpoint:     c.endpoint,
		APIKey:       apiKey,
		Model:        c.model,
		Memory:       mem,
	})
}

// buildConverters turns --converter specs into a converter chain,
// preserving flag order.
func (c *runCommander) buildConverters(ctx context.Context, chat target.ChatTarget) ([]converter.Converter, error) {
	converters := make([]converter.Converter, 0, len(c.converterSpecs))
	for _, spec := range c.converterSpecs {
		name, arg, _ := strings.Cut(spec, "=")
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "base64":
			converters = append(converters, converter.NewBase64())
		case "variation":
			conv, err := converter.NewVariation(chat)
			if err != nil {
				return nil, err
			}
			converters = append(converters, conv)
		case "translation":
			languages := splitList(arg)
			conv, err := converter.NewTranslation(ctx, chat, languages)
			if err != nil {
				return nil, err
			}
			converters = append(converters, conv)
		default:
			return nil, fmt.Errorf("unknown converter %q (available: base64, variation, translation=<languages>)", name)
		}
	}
	return converters, nil
}

// buildScorers builds the judge for --rubric scoring. The judge target
// falls back to the attack target's provider settings when the scoring
// section leaves them empty.
func (c *runCommander) buildScorers(ctx context.Context, mem memory.Driver) ([]scorer.Scorer, error) {
	if c.rubricPath == "" {
		return nil, nil
	}

	classifier, ok := category.BuiltinClassifier(c.rubricPath)
	if !ok {
		loaded, err := category.LoadClassifier(c.rubricPath)
		if err != nil {
			return nil, err
		}
		classifier = loaded
	}

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

	s, err := category.New(judge, mem, classifier, category.WithLogger(c.log))
	if err != nil {
		return nil, err
	}

	return []scorer.Scorer{s}, nil
}

func (c *runCommander) newPublisher() (eventstream.Publisher, error) {
	if c.eventsProvider != "kafka" {
		return nop.NewPublisher(), nil
	}

	return kafka.NewPublisher(kafka.Config{
		Brokers: splitList(c.eventsBrokers),
		Topic:   c.eventsTopic,
	})
}

// printGroups renders the response groups, with scores when the run was
// scored.
func (c *runCommander) printGroups(ctx context.Context, mem memory.Driver, sent int, groups []*prompt.Group, scored bool) {
	fmt.Printf("\n  %s Sent %s prompts %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(sent)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d responses)", len(groups))),
	)

	byPiece := map[uuid.UUID][]*prompt.Score{}
	if scored {
		var ids []uuid.UUID
		for _, group := range groups {
			for _, piece := range group.Pieces {
				ids = append(ids, piece.ID)
			}
		}
		scores, err := mem.ScoresByPieceIDs(ctx, ids)
		if err != nil {
			c.log.Warn("loading scores", "error", err)
		}
		for _, s := range scores {
			byPiece[s.PieceID] = append(byPiece[s.PieceID], s)
		}
	}

	for _, group := range groups {
		for _, piece := range group.Pieces {
			preview := utils.Truncate(strings.ReplaceAll(piece.ConvertedValue, "\n", " "), 72)
			fmt.Printf("  %s %s %s\n",
				cliui.HashStyle.Render(utils.Truncate(piece.ConversationID, 8)),
				cliui.RoleStyle(piece.Role).Render("["+string(piece.Role)+"]"),
				cliui.PreviewStyle.Render(preview),
			)
			for _, s := range byPiece[piece.ID] {
				fmt.Printf("    %s %s\n", cliui.DimStyle.Render("score:"), cliui.FormatScore(s))
			}
		}
	}

	fmt.Println()
}

// watch sends prompts from .txt files as they land in the watched
// directory. Create and write events within a second of each other are
// collapsed so a file is sent once per save.
func (c *runCommander) watch(ctx context.Context, mem memory.Driver, orch *orchestrator.PromptSending, dataType prompt.DataType, scored bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.watchDir); err != nil {
		return fmt.Errorf("watching %s: %w", c.watchDir, err)
	}

	fmt.Printf("\n  %s Watching %s %s\n",
		cliui.DimStyle.Render("●"),
		cliui.NameStyle.Render(c.watchDir),
		cliui.DimStyle.Render("(Ctrl+C to stop)"),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lastSent := map[string]time.Time{}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Ext(event.Name) != ".txt" {
				continue
			}
			if sent, seen := lastSent[event.Name]; seen && time.Since(sent) < time.Second {
				continue
			}

			prompts, err := readPromptFile(event.Name)
			if err != nil {
				c.log.Warn("reading prompt file", "path", event.Name, "error", err)
				continue
			}
			if len(prompts) == 0 {
				continue
			}
			lastSent[event.Name] = time.Now()

			c.log.Info("sending prompts", "path", event.Name, "prompts", len(prompts))
			groups, sendErr := orch.SendPrompts(ctx, prompts, dataType, map[string]string{
				"source_file": filepath.Base(event.Name),
			})
			c.printGroups(ctx, mem, len(prompts), groups, scored)
			if sendErr != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, sendErr)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("watcher error", "error", err)
		case sig := <-sigChan:
			c.log.Info("received signal, stopping watch", "signal", sig.String())
			return nil
		}
	}
}

func readPromptFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readPrompts(f)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
