// Package normalizer applies converter chains to pending prompt
// requests and dispatches the converted values to a target in bounded
// concurrent batches.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/probeworks/gauntlet/pkg/eventstream"
	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/prompt"
	"github.com/probeworks/gauntlet/pkg/target"
	"github.com/probeworks/gauntlet/pkg/worker"
)

// Result pairs a request's response group with that request's error.
// A nil Group with a nil Err means the target accepted the prompt but
// produced no reply.
type Result struct {
	Group *prompt.Group
	Err   error
}

// Normalizer validates requests, applies their converter chains, and
// dispatches to a target. Targets persist their own exchanges; the
// normalizer publishes piece-persisted events after each round trip
// when a publisher is configured.
type Normalizer struct {
	publisher eventstream.Publisher
	log       *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithPublisher streams piece-persisted events after each round trip.
func WithPublisher(p eventstream.Publisher) Option {
	return func(n *Normalizer) { n.publisher = p }
}

// WithLogger sets the structured logger. Defaults to the nop logger.
func WithLogger(log *slog.Logger) Option {
	return func(n *Normalizer) { n.log = log }
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{log: logger.Nop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send dispatches every request to the target with at most batchSize
// calls in flight and returns one Result per request, in request order.
// One request's failure never blocks or cancels its siblings; there is
// no retry at this layer.
func (n *Normalizer) Send(ctx context.Context, requests []Request, tgt target.Target, labels map[string]string, orchestratorID prompt.Identifier, batchSize int) ([]Result, error) {
	if tgt == nil {
		return nil, errors.New("normalizer: target required")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("normalizer: batch size must be at least 1, got %d", batchSize)
	}
	if len(requests) == 0 {
		return nil, nil
	}

	pool, err := worker.NewPool(&worker.Config{
		NumWorkers: uint(batchSize),
		QueueSize:  uint(len(requests)),
		Logger:     n.log,
	})
	if err != nil {
		return nil, fmt.Errorf("normalizer: start worker pool: %w", err)
	}
	defer pool.Close()

	results := make([]Result, len(requests))

	var wg sync.WaitGroup
	for i := range requests {
		req := requests[i]
		slot := &results[i]

		wg.Add(1)
		submitErr := pool.Submit(ctx, func() {
			defer wg.Done()
			slot.Group, slot.Err = n.sendOne(ctx, req, tgt, labels, orchestratorID)
		})
		if submitErr != nil {
			wg.Done()
			slot.Err = fmt.Errorf("enqueue request: %w", submitErr)
		}
	}
	wg.Wait()

	return results, nil
}

// sendOne runs the full pipeline for a single request: validate, apply
// the converter chain, dispatch, publish.
func (n *Normalizer) sendOne(ctx context.Context, req Request, tgt target.Target, labels map[string]string, orchestratorID prompt.Identifier) (*prompt.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	value := req.Value
	dt := req.dataType()

	var converterIDs []prompt.Identifier
	for _, c := range req.Converters {
		res, err := c.Convert(ctx, value, dt)
		if err != nil {
			return nil, fmt.Errorf("convert with %s: %w", c.Identifier().Name, err)
		}
		value = res.Value()
		dt = res.DataType
		converterIDs = append(converterIDs, c.Identifier())
	}

	piece := prompt.NewPiece(prompt.RoleUser, req.Value,
		prompt.WithConversationID(req.ConversationID),
		prompt.WithDataType(req.dataType()),
		prompt.WithConvertedValue(value, dt),
		prompt.WithLabels(labels),
		prompt.WithConverterIdentifiers(converterIDs...),
		prompt.WithTargetIdentifier(tgt.Identifier()),
		prompt.WithOrchestratorIdentifier(orchestratorID),
	)

	response, err := tgt.Send(ctx, prompt.NewGroup(piece))
	if err != nil {
		return nil, fmt.Errorf("send to target: %w", err)
	}

	n.publish(ctx, piece)
	if response != nil {
		n.publish(ctx, response.Pieces...)
	}

	return response, nil
}

// publish emits piece-persisted events. Event delivery failures are
// logged, never propagated into the batch result.
func (n *Normalizer) publish(ctx context.Context, pieces ...*prompt.Piece) {
	if n.publisher == nil {
		return
	}

	for _, piece := range pieces {
		if err := n.publisher.PublishPiece(ctx, eventstream.NewPiecePersisted(piece)); err != nil {
			n.log.Warn("publish piece event failed", "piece_id", piece.ID, "error", err)
		}
	}
}
