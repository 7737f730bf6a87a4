package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/probeworks/gauntlet/pkg/converter"
	"github.com/probeworks/gauntlet/pkg/eventstream"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/memory"
	"github.com/probeworks/gauntlet/pkg/normalizer"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/scorer"
	"github.com/probeworks/gauntlet/pkg/target"
)

// PromptSendingConfig configures a PromptSending orchestrator.
type PromptSendingConfig struct {
	// Target receives the prompts.
	Target target.Target

	// Memory holds the recorded conversations.
	Memory memory.Driver

	// Converters apply to every prompt, in order.
	Converters []converter.Converter

	// Scorers judge each response piece right after the batch returns.
	Scorers []scorer.Scorer

	// BatchSize bounds concurrent target calls. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// Labels tag every piece sent by this orchestrator.
	Labels map[string]string

	// Publisher streams piece-persisted events when set.
	Publisher eventstream.Publisher

	// Logger defaults to the nop logger.
	Logger *slog.Logger
}

// PromptSending sends a list of prompts through the configured
// converter chain to a target and optionally scores the responses.
type PromptSending struct {
	target     target.Target
	mem        memory.Driver
	norm       *normalizer.Normalizer
	converters []converter.Converter
	scorers    []scorer.Scorer
	batchSize  int
	labels     map[string]string
	log        *slog.Logger
	id         prompt.Identifier
}

// NewPromptSending creates the orchestrator.
func NewPromptSending(cfg PromptSendingConfig) (*PromptSending, error) {
	if cfg.Target == nil {
		return nil, errors.New("orchestrator: target required")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("orchestrator: %w", memory.ErrNotConfigured)
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("orchestrator: batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	labels := make(map[string]string, len(cfg.Labels))
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &PromptSending{
		target:     cfg.Target,
		mem:        cfg.Memory,
		norm:       normalizer.New(normalizer.WithPublisher(cfg.Publisher), normalizer.WithLogger(log)),
		converters: cfg.Converters,
		scorers:    cfg.Scorers,
		batchSize:  cfg.BatchSize,
		labels:     labels,
		log:        log,
		id:         prompt.NewIdentifier(prompt.KindOrchestrator, "prompt_sending", "orchestrator"),
	}, nil
}

func (o *PromptSending) Identifier() prompt.Identifier {
	return o.id
}

// SendPrompts builds one request per prompt with the configured chain
// and dispatches the whole batch. Call labels overlay the
// orchestrator's label set for this and later calls; unrelated keys
// are untouched. Successful groups are returned even when sibling
// requests fail; the error joins every per-request failure.
func (o *PromptSending) SendPrompts(ctx context.Context, prompts []string, dataType prompt.DataType, labels map[string]string) ([]*prompt.Group, error) {
	for k, v := range labels {
		o.labels[k] = v
	}

	requests := make([]normalizer.Request, 0, len(prompts))
	for _, p := range prompts {
		requests = append(requests, normalizer.Request{
			Value:      p,
			DataType:   dataType,
			Converters: o.converters,
		})
	}

	return o.SendRequests(ctx, requests)
}

// SendRequests dispatches prepared requests and scores the responses
// when scorers are configured.
func (o *PromptSending) SendRequests(ctx context.Context, requests []normalizer.Request) ([]*prompt.Group, error) {
	results, err := o.norm.Send(ctx, requests, o.target, o.labels, o.id, o.batchSize)
	if err != nil {
		return nil, err
	}

	var (
		groups []*prompt.Group
		errs   []error
	)
	for i, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("request %d: %w", i, result.Err))
			continue
		}
		if result.Group != nil {
			groups = append(groups, result.Group)
		}
	}

	if len(o.scorers) > 0 {
		if err := o.scoreResponses(ctx, groups); err != nil {
			errs = append(errs, err)
		}
	}

	return groups, errors.Join(errs...)
}

// scoreResponses runs every configured scorer over the response pieces
// of the returned groups, responses only.
func (o *PromptSending) scoreResponses(ctx context.Context, groups []*prompt.Group) error {
	var ids []uuid.UUID
	for _, group := range groups {
		for _, piece := range group.Pieces {
			ids = append(ids, piece.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var errs []error
	for _, s := range o.scorers {
		scoring, err := NewScoring(ScoringConfig{
			Memory:        o.mem,
			Scorer:        s,
			BatchSize:     o.batchSize,
			ResponsesOnly: true,
			Logger:        o.log,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := scoring.ScorePiecesByID(ctx, ids); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
